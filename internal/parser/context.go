package parser

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/models"
)

// SecurityResolver returns the canonical instrument for a set of identity
// candidates, creating it on first sight.
type SecurityResolver interface {
	Resolve(attrs models.SecurityAttributes) (*models.Security, error)
}

// Store holds string entries, boolean flags and typed values.
type Store struct {
	entries map[string]string
	flags   map[string]bool
	values  map[string]any
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]string),
		flags:   make(map[string]bool),
		values:  make(map[string]any),
	}
}

// Get returns the entry for key, or "".
func (s *Store) Get(key string) string { return s.entries[key] }

func (s *Store) Lookup(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

func (s *Store) Put(key, value string) { s.entries[key] = value }

func (s *Store) Has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

func (s *Store) Delete(key string) { delete(s.entries, key) }

// Keys returns the entry keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Flag(key string) bool { return s.flags[key] }

func (s *Store) SetFlag(key string, v bool) { s.flags[key] = v }

func (s *Store) Value(key string) any { return s.values[key] }

func (s *Store) SetValue(key string, v any) { s.values[key] = v }

// ValueOf returns the typed value stored under key.
func ValueOf[V any](s *Store, key string) (V, bool) {
	v, ok := s.values[key].(V)
	return v, ok
}

// Context is the state shared by every section evaluated for one document.
// A fresh Context is created per document; writes are visible to sections
// evaluated after them.
type Context struct {
	*Store

	filename   string
	locale     convert.Locale
	securities SecurityResolver
	exported   []string
}

// NewContext returns an empty context. securities may be nil, in which case
// every lookup creates a new instrument.
func NewContext(filename string, locale convert.Locale, securities SecurityResolver) *Context {
	return &Context{
		Store:      NewStore(),
		filename:   filename,
		locale:     locale,
		securities: securities,
	}
}

func (c *Context) Filename() string { return c.filename }

func (c *Context) Locale() convert.Locale { return c.locale }

// Export stores a document-level entry that is merged into the values of
// every section; captures of the section take precedence.
func (c *Context) Export(key, value string) {
	if !c.isExported(key) {
		c.exported = append(c.exported, key)
	}
	c.Put(key, value)
}

func (c *Context) isExported(key string) bool {
	for _, k := range c.exported {
		if k == key {
			return true
		}
	}
	return false
}

// Exported returns the current exported entries.
func (c *Context) Exported() map[string]string {
	out := make(map[string]string, len(c.exported))
	for _, k := range c.exported {
		if v, ok := c.Lookup(k); ok {
			out[k] = v
		}
	}
	return out
}

// contextState is a copy of everything sections can write to a Context.
type contextState struct {
	store    Store
	exported []string
}

func (c *Context) snapshot() contextState {
	return contextState{
		store: Store{
			entries: maps.Clone(c.entries),
			flags:   maps.Clone(c.flags),
			values:  maps.Clone(c.values),
		},
		exported: slices.Clone(c.exported),
	}
}

// restore puts back a snapshot. The Store pointer is kept since sections
// share it.
func (c *Context) restore(s contextState) {
	*c.Store = s.store
	c.exported = s.exported
}

// Security resolves identity candidates through the configured resolver.
func (c *Context) Security(attrs models.SecurityAttributes) (*models.Security, error) {
	if c.securities != nil {
		return c.securities.Resolve(attrs)
	}
	return &models.Security{
		Name:     attrs.FullName(),
		ISIN:     strings.TrimSpace(attrs.ISIN),
		WKN:      strings.TrimSpace(attrs.WKN),
		Ticker:   strings.TrimSpace(attrs.Ticker),
		Currency: attrs.Currency,
	}, nil
}
