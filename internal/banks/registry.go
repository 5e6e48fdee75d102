// Package banks holds the rule sets of the supported banks and brokers.
package banks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
)

// All returns every rule set in detection order. Rule sets are built fresh
// on each call.
func All(policy reconcile.Policy) []extract.RuleSet {
	return []extract.RuleSet{
		Metro(),
		HSBC(),
		Barclays(),
		Broker(policy),
	}
}

// Select returns the named rule sets, or all of them when names is empty.
func Select(policy reconcile.Policy, names ...string) ([]extract.RuleSet, error) {
	all := All(policy)
	if len(names) == 0 {
		return all, nil
	}
	var out []extract.RuleSet
	for _, name := range names {
		rs, ok := find(all, name)
		if !ok {
			return nil, &UnknownError{Name: name}
		}
		out = append(out, rs)
	}
	return out, nil
}

func find(all []extract.RuleSet, name string) (extract.RuleSet, bool) {
	for _, rs := range all {
		if rs.Name == strings.ToLower(name) {
			return rs, true
		}
	}
	return extract.RuleSet{}, false
}

// Names lists the rule set keys in alphabetical order.
func Names() []string {
	var names []string
	for _, rs := range All(reconcile.DefaultPolicy) {
		names = append(names, rs.Name)
	}
	sort.Strings(names)
	return names
}

// UnknownError is returned for a rule set name that does not exist.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown bank %q", e.Name)
}
