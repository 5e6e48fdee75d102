// Package securities resolves the instrument names a statement prints to
// canonical records shared across a batch of documents.
package securities

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

var ErrNoIdentity = errors.New("security has no identifying attribute")

// Cache is safe for concurrent use by the documents of one batch.
type Cache struct {
	mu       sync.Mutex
	all      []*models.Security
	byISIN   map[string]*models.Security
	byWKN    map[string]*models.Security
	byTicker map[string]*models.Security
	byName   map[string]*models.Security
}

func NewCache() *Cache {
	return &Cache{
		byISIN:   make(map[string]*models.Security),
		byWKN:    make(map[string]*models.Security),
		byTicker: make(map[string]*models.Security),
		byName:   make(map[string]*models.Security),
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Resolve looks a security up by ISIN, then WKN, then ticker, then name,
// and creates it when nothing matches. A returned record is never changed
// afterwards: when attrs add attributes to a known record, a completed copy
// takes its place and is returned instead.
func (c *Cache) Resolve(attrs models.SecurityAttributes) (*models.Security, error) {
	if attrs.Empty() {
		return nil, ErrNoIdentity
	}
	add := models.Security{
		ISIN:     strings.ToUpper(strings.TrimSpace(attrs.ISIN)),
		WKN:      strings.ToUpper(strings.TrimSpace(attrs.WKN)),
		Ticker:   strings.ToUpper(strings.TrimSpace(attrs.Ticker)),
		Name:     attrs.FullName(),
		Currency: attrs.Currency,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.find(add.ISIN, add.WKN, add.Ticker, normalizeName(add.Name))
	if old == nil {
		s := &add
		c.all = append(c.all, s)
		c.index(s)
		return s, nil
	}

	merged := *old
	if !complete(&merged, add) {
		return old, nil
	}
	c.replace(old, &merged)
	return &merged, nil
}

// complete fills the empty attributes of s from add and reports whether
// anything changed.
func complete(s *models.Security, add models.Security) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&s.ISIN, add.ISIN)
	fill(&s.WKN, add.WKN)
	fill(&s.Ticker, add.Ticker)
	fill(&s.Name, add.Name)
	fill(&s.Currency, add.Currency)
	return changed
}

// replace swaps old for s in the record list and every index.
func (c *Cache) replace(old, s *models.Security) {
	for i, r := range c.all {
		if r == old {
			c.all[i] = s
		}
	}
	for _, idx := range []map[string]*models.Security{c.byISIN, c.byWKN, c.byTicker, c.byName} {
		for k, r := range idx {
			if r == old {
				idx[k] = s
			}
		}
	}
	c.index(s)
}

func (c *Cache) find(isin, wkn, ticker, name string) *models.Security {
	if isin != "" {
		if s, ok := c.byISIN[isin]; ok {
			return s
		}
	}
	if wkn != "" {
		if s, ok := c.byWKN[wkn]; ok {
			return s
		}
	}
	if ticker != "" {
		if s, ok := c.byTicker[ticker]; ok {
			return s
		}
	}
	// a name only identifies a security when no stronger key contradicts it
	if name != "" {
		if s, ok := c.byName[name]; ok && (isin == "" || s.ISIN == "") {
			return s
		}
	}
	return nil
}

func (c *Cache) index(s *models.Security) {
	if s.ISIN != "" {
		c.byISIN[s.ISIN] = s
	}
	if s.WKN != "" {
		c.byWKN[s.WKN] = s
	}
	if s.Ticker != "" {
		c.byTicker[s.Ticker] = s
	}
	if n := normalizeName(s.Name); n != "" {
		if _, ok := c.byName[n]; !ok {
			c.byName[n] = s
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.all)
}

// All returns copies of the known securities sorted by name.
func (c *Cache) All() []models.Security {
	c.mu.Lock()
	out := make([]models.Security, len(c.all))
	for i, s := range c.all {
		out[i] = *s
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
