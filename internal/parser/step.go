package parser

import (
	"fmt"
	"regexp"
	"strings"
)

type stepKind int

const (
	findStep stepKind = iota
	matchStep
	copyStep
)

// Step is one instruction of a section.
type Step struct {
	kind     stepKind
	pattern  string
	re       *regexp.Regexp
	keys     []string
	optional bool
}

// Patterns always match a whole line.
func compileLine(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + pattern + `)$`)
}

// Find moves the cursor forward to the first line matching pattern without
// consuming it. Captures are ignored.
func Find(pattern string) Step {
	return Step{kind: findStep, pattern: pattern, re: compileLine(pattern)}
}

// Match requires the line at the cursor to match pattern; named groups are
// captured and the cursor advances by one line.
func Match(pattern string) Step {
	return Step{kind: matchStep, pattern: pattern, re: compileLine(pattern)}
}

// ContextCopy copies context entries into the section's values. A missing
// key fails the section.
func ContextCopy(keys ...string) Step {
	return Step{kind: copyStep, keys: keys}
}

// OptionalContextCopy is ContextCopy tolerating missing keys.
func OptionalContextCopy(keys ...string) Step {
	return Step{kind: copyStep, keys: keys, optional: true}
}

func (s Step) String() string {
	switch s.kind {
	case findStep:
		return fmt.Sprintf("find(%s)", s.pattern)
	case matchStep:
		return fmt.Sprintf("match(%s)", s.pattern)
	default:
		return fmt.Sprintf("copy(%s)", strings.Join(s.keys, ","))
	}
}

// groups returns the named capture groups of a match step.
func (s Step) groups() []string {
	if s.kind != matchStep {
		return nil
	}
	var names []string
	for _, n := range s.re.SubexpNames() {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}
