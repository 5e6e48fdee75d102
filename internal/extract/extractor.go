// Package extract runs rule sets over documents and collects items and
// errors, isolating failures to the smallest affected unit.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
)

// RuleSet is the configuration of one bank or broker.
type RuleSet struct {
	// Name is the short key used on the command line, e.g. "hsbc".
	Name string
	// Label is the bank name recorded on items and errors.
	Label string
	// Identifiers gate the rule set: at least one must occur in the text.
	// Without identifiers the document types decide alone.
	Identifiers   []string
	Locale        convert.Locale
	DocumentTypes []*parser.DocumentType
}

func (rs RuleSet) identified(present func(string) bool) bool {
	if len(rs.Identifiers) == 0 {
		return true
	}
	for _, id := range rs.Identifiers {
		if present(id) {
			return true
		}
	}
	return false
}

// Result is everything extracted from one document.
type Result struct {
	Filename string         `json:"filename"`
	Items    []*models.Item `json:"items"`
	Errors   []*Error       `json:"errors"`
}

// Has reports whether an error of kind was recorded.
func (r *Result) Has(kind Kind) bool {
	for _, e := range r.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func (r *Result) add(e *Error) { r.Errors = append(r.Errors, e) }

// Observer is notified after each document.
type Observer interface {
	ObserveResult(r *Result, elapsed time.Duration)
}

type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithSecurities shares an identity cache between the documents of a batch.
func WithSecurities(r parser.SecurityResolver) Option {
	return func(e *Extractor) { e.securities = r }
}

// WithLocale overrides the locale of the named rule set.
func WithLocale(name string, l convert.Locale) Option {
	return func(e *Extractor) { e.locales[name] = l }
}

func WithObserver(o Observer) Option {
	return func(e *Extractor) { e.observer = o }
}

// WithVerify checks every item's units against p and records mismatches
// as the item's failure.
func WithVerify(p reconcile.Policy) Option {
	return func(e *Extractor) { e.verify = &p }
}

// Extractor is safe for concurrent use; every document gets its own
// context.
type Extractor struct {
	ruleSets   []RuleSet
	locales    map[string]convert.Locale
	logger     *slog.Logger
	securities parser.SecurityResolver
	observer   Observer
	verify     *reconcile.Policy

	markers []string
	matcher *ahocorasick.Matcher
}

// New validates the rule sets and compiles their markers into a single
// automaton.
func New(ruleSets []RuleSet, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		ruleSets: ruleSets,
		locales:  make(map[string]convert.Locale),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	seen := make(map[string]bool)
	addMarker := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			e.markers = append(e.markers, m)
		}
	}
	for _, rs := range ruleSets {
		if rs.Label == "" {
			return nil, fmt.Errorf("rule set %q has no label", rs.Name)
		}
		for _, id := range rs.Identifiers {
			addMarker(id)
		}
		for _, dt := range rs.DocumentTypes {
			if err := dt.Validate(); err != nil {
				return nil, fmt.Errorf("rule set %q: %w", rs.Name, err)
			}
			for _, m := range dt.Markers() {
				addMarker(m)
			}
			for _, m := range dt.Excludes() {
				addMarker(m)
			}
		}
	}
	if len(e.markers) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(e.markers)
	}
	return e, nil
}

// present finds every known marker in text in a single pass.
func (e *Extractor) present(text string) map[string]bool {
	set := make(map[string]bool)
	if e.matcher == nil {
		return set
	}
	for _, i := range e.matcher.MatchThreadSafe([]byte(text)) {
		set[e.markers[i]] = true
	}
	return set
}

func (e *Extractor) locale(rs RuleSet) convert.Locale {
	if l, ok := e.locales[rs.Name]; ok {
		return l
	}
	return rs.Locale
}

// Extract runs every applicable rule set over doc.
func (e *Extractor) Extract(doc *parser.Document) (res *Result) {
	start := time.Now()
	res = &Result{Filename: doc.Filename}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("extraction aborted",
				slog.String("filename", doc.Filename),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			res.add(&Error{Kind: UnexpectedFault, Filename: doc.Filename, Reason: fmt.Sprint(p)})
		}
		if e.observer != nil {
			e.observer.ObserveResult(res, time.Since(start))
		}
	}()

	found := e.present(doc.Text)
	has := func(m string) bool { return found[m] }

	var labels []string
	seq := 0
	for _, rs := range e.ruleSets {
		if !rs.identified(has) {
			continue
		}
		ctx := parser.NewContext(doc.Filename, e.locale(rs), e.securities)
		for _, dt := range rs.DocumentTypes {
			if !dt.Accepts(has) {
				continue
			}
			if len(labels) == 0 || labels[len(labels)-1] != rs.Label {
				labels = append(labels, rs.Label)
			}
			e.logger.Debug("document recognized",
				slog.String("filename", doc.Filename),
				slog.String("bank", rs.Label),
				slog.String("document_type", dt.Name()),
			)
			seq = e.runDocumentType(res, doc, ctx, rs, dt, seq)
		}
	}

	if len(labels) == 0 {
		res.add(&Error{
			Kind:     DocumentUnrecognized,
			Filename: doc.Filename,
			Reason:   "no rule set recognizes this document",
		})
		return res
	}
	if len(res.Items) == 0 && !res.Has(LayoutMismatch) {
		res.add(&Error{
			Kind:     LayoutMismatch,
			Bank:     strings.Join(labels, ", "),
			Filename: doc.Filename,
			Reason:   "document recognized but no transactions found",
		})
	}
	return res
}

func (e *Extractor) runDocumentType(res *Result, doc *parser.Document, ctx *parser.Context, rs RuleSet, dt *parser.DocumentType, seq int) int {
	if err := dt.ExtractContext(doc, ctx); err != nil {
		res.add(e.classify(err, doc, rs, dt, contextLine(err)))
		return seq
	}

	for _, o := range dt.Parse(doc, ctx) {
		line := o.Range.Start + 1
		if o.Err != nil {
			res.add(e.classify(o.Err, doc, rs, dt, line))
			continue
		}
		if o.Item == nil {
			continue
		}
		o.Item.Stamp(doc.Filename, rs.Label, dt.Name(), line, seq)
		seq++
		if e.verify != nil {
			if errs := e.verify.Verify(o.Item); len(errs) > 0 {
				o.Item.Failure = errors.Join(errs...).Error()
			}
		}
		res.Items = append(res.Items, o.Item)
	}
	return seq
}

// contextLine returns the 1-based line a document-level section failed on,
// or 0 when the error carries none.
func contextLine(err error) int {
	var (
		invalid  *parser.ValidationError
		mismatch *parser.MatchError
	)
	switch {
	case errors.As(err, &invalid):
		return invalid.Line + 1
	case errors.As(err, &mismatch):
		return mismatch.Line + 1
	}
	return 0
}

func (e *Extractor) classify(err error, doc *parser.Document, rs RuleSet, dt *parser.DocumentType, line int) *Error {
	out := &Error{
		Bank:         rs.Label,
		Filename:     doc.Filename,
		DocumentType: dt.Name(),
		Line:         line,
		Reason:       err.Error(),
	}

	var (
		fault    *parser.FaultError
		invalid  *parser.ValidationError
		mismatch *parser.MatchError
	)
	switch {
	case errors.As(err, &fault):
		out.Kind = UnexpectedFault
		e.logger.Error("rule fault",
			slog.String("filename", doc.Filename),
			slog.String("bank", rs.Label),
			slog.String("document_type", dt.Name()),
			slog.Int("line", line),
			slog.Any("panic", fault.Value),
			slog.String("stack", string(fault.Stack)),
		)
	case errors.As(err, &invalid):
		out.Kind = FieldValidation
	case errors.As(err, &mismatch):
		out.Kind = LayoutMismatch
	default:
		out.Kind = UnexpectedFault
		e.logger.Error("unexpected extraction error",
			slog.String("filename", doc.Filename),
			slog.String("bank", rs.Label),
			slog.Any("error", err),
		)
	}
	return out
}

// ExtractAll extracts documents in parallel, at most limit at a time
// (unbounded when limit <= 0). Results keep the order of docs. Only
// cancellation of ctx ends the batch early.
func (e *Extractor) ExtractAll(ctx context.Context, docs []*parser.Document, limit int) ([]*Result, error) {
	results := make([]*Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Extract(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RuleSets returns the configured rule sets.
func (e *Extractor) RuleSets() []RuleSet { return e.ruleSets }
