package parser

import (
	"errors"
	"fmt"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

type node[T any] interface {
	apply(ev *evaluation[T]) error
}

// ConcludeFunc post-processes a subject after all sections ran.
type ConcludeFunc[T any] func(ctx *Context, subject T) error

// WrapFunc turns a finished subject into an item. A nil item discards the
// occurrence silently.
type WrapFunc[T any] func(subject T) (*models.Item, error)

// Runner extracts at most one item from a block occurrence.
type Runner interface {
	Run(doc *Document, r Range, ctx *Context) (*models.Item, error)
	Validate() error
}

// Transaction describes how one kind of block occurrence becomes a subject.
type Transaction[T any] struct {
	subject  func() T
	nodes    []node[T]
	names    map[string]bool
	conclude []ConcludeFunc[T]
	wrap     WrapFunc[T]
}

// NewTransaction returns a transaction creating a fresh subject per
// occurrence.
func NewTransaction[T any](subject func() T) *Transaction[T] {
	return &Transaction[T]{subject: subject, names: make(map[string]bool)}
}

// NewSection declares a section without adding it to the evaluation
// order; use it for OneOf and Repeat candidates.
func (t *Transaction[T]) NewSection(name string, steps ...Step) *Section[T] {
	if t.names[name] {
		panic(fmt.Sprintf("duplicate section name %q", name))
	}
	t.names[name] = true
	return newSection[T](name, steps)
}

// Section declares a required section and appends it to the evaluation
// order.
func (t *Transaction[T]) Section(name string, steps ...Step) *Section[T] {
	s := t.NewSection(name, steps...)
	t.nodes = append(t.nodes, s)
	return s
}

// OneOf appends an alternation; the first candidate that matches wins.
func (t *Transaction[T]) OneOf(candidates ...*Section[T]) *Transaction[T] {
	t.nodes = append(t.nodes, &oneOf[T]{candidates: candidates})
	return t
}

// OptionalOneOf is OneOf that tolerates no candidate matching.
func (t *Transaction[T]) OptionalOneOf(candidates ...*Section[T]) *Transaction[T] {
	t.nodes = append(t.nodes, &oneOf[T]{candidates: candidates, optional: true})
	return t
}

// Repeat appends a section applied zero or more times.
func (t *Transaction[T]) Repeat(s *Section[T]) *Transaction[T] {
	t.nodes = append(t.nodes, &repeat[T]{section: s})
	return t
}

func (t *Transaction[T]) Conclude(fn ConcludeFunc[T]) *Transaction[T] {
	t.conclude = append(t.conclude, fn)
	return t
}

func (t *Transaction[T]) Wrap(fn WrapFunc[T]) *Transaction[T] {
	t.wrap = fn
	return t
}

// Validate reports declaration mistakes.
func (t *Transaction[T]) Validate() error {
	if t.subject == nil {
		return errors.New("transaction has no subject factory")
	}
	if len(t.nodes) == 0 {
		return errors.New("transaction has no sections")
	}
	if t.wrap == nil {
		return errors.New("transaction has no wrap function")
	}
	return nil
}

// Run evaluates the transaction over the lines r of doc.
func (t *Transaction[T]) Run(doc *Document, r Range, ctx *Context) (*models.Item, error) {
	subject := t.subject()
	if err := t.evaluate(doc.Lines, r, ctx, subject); err != nil {
		return nil, err
	}
	for _, fn := range t.conclude {
		if err := fn(ctx, subject); err != nil {
			return nil, &ValidationError{Section: "conclude", Line: r.Start, Err: err}
		}
	}
	item, err := t.wrap(subject)
	if err != nil {
		return nil, &ValidationError{Section: "wrap", Line: r.Start, Err: err}
	}
	return item, nil
}

func (t *Transaction[T]) evaluate(lines []string, r Range, ctx *Context, subject T) error {
	ev := &evaluation[T]{
		lines:   lines,
		pos:     r.Start,
		end:     r.End,
		ctx:     ctx,
		tx:      NewStore(),
		subject: subject,
	}
	for _, n := range t.nodes {
		if err := n.apply(ev); err != nil {
			return err
		}
	}
	return nil
}
