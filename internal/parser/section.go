package parser

import (
	"fmt"
	"strings"
)

// AssignFunc moves the values of a matched section into the subject. It may
// read and write the context. A returned error rejects the occurrence.
type AssignFunc[T any] func(v *Values, ctx *Context, subject T) error

// Section is an ordered chain of steps evaluated without backtracking.
type Section[T any] struct {
	name     string
	steps    []Step
	optional bool
	assign   AssignFunc[T]
}

func newSection[T any](name string, steps []Step) *Section[T] {
	seen := make(map[string]bool)
	for _, st := range steps {
		for _, g := range st.groups() {
			if seen[g] {
				panic(fmt.Sprintf("section %q: duplicate capture group %q", name, g))
			}
			seen[g] = true
		}
	}
	return &Section[T]{name: name, steps: steps}
}

func (s *Section[T]) Name() string { return s.name }

// Assign sets the callback run after the section matched.
func (s *Section[T]) Assign(fn AssignFunc[T]) *Section[T] {
	s.assign = fn
	return s
}

// Optional makes a mismatch of the section non-fatal.
func (s *Section[T]) Optional() *Section[T] {
	s.optional = true
	return s
}

// evaluation is the state of one transaction run over one block occurrence.
type evaluation[T any] struct {
	lines   []string
	pos     int
	end     int
	ctx     *Context
	tx      *Store
	subject T
}

// match runs the steps from the current cursor. It does not move the
// cursor; on success it returns the values and the new cursor position.
func (s *Section[T]) match(ev *evaluation[T]) (*Values, int, error) {
	fields := ev.ctx.Exported()
	pos := ev.pos

	for _, st := range s.steps {
		switch st.kind {
		case findStep:
			found := -1
			for i := pos; i < ev.end; i++ {
				if st.re.MatchString(ev.lines[i]) {
					found = i
					break
				}
			}
			if found < 0 {
				return nil, 0, &MatchError{Section: s.name, Step: st.String(), Line: pos}
			}
			pos = found

		case matchStep:
			if pos >= ev.end {
				return nil, 0, &MatchError{Section: s.name, Step: st.String(), Line: pos}
			}
			line := ev.lines[pos]
			idx := st.re.FindStringSubmatchIndex(line)
			if idx == nil {
				return nil, 0, &MatchError{Section: s.name, Step: st.String(), Line: pos}
			}
			for g, name := range st.re.SubexpNames() {
				if name == "" || idx[2*g] < 0 {
					continue
				}
				fields[name] = line[idx[2*g]:idx[2*g+1]]
			}
			pos++

		case copyStep:
			for _, key := range st.keys {
				v, ok := ev.ctx.Lookup(key)
				if !ok {
					if st.optional {
						continue
					}
					return nil, 0, &MatchError{Section: s.name, Step: st.String(), Line: pos}
				}
				fields[key] = v
			}
		}
	}

	return &Values{
		fields: fields,
		Start:  ev.pos,
		End:    pos,
		locale: ev.ctx.Locale(),
		tx:     ev.tx,
	}, pos, nil
}

func (s *Section[T]) assignTo(v *Values, ev *evaluation[T]) error {
	if s.assign == nil {
		return nil
	}
	if err := s.assign(v, ev.ctx, ev.subject); err != nil {
		return &ValidationError{Section: s.name, Line: v.Start, Err: err}
	}
	return nil
}

func (s *Section[T]) apply(ev *evaluation[T]) error {
	v, pos, err := s.match(ev)
	if err != nil {
		if s.optional {
			return nil
		}
		return err
	}
	ev.pos = pos
	return s.assignTo(v, ev)
}

// oneOf applies the first candidate that matches, in declaration order.
type oneOf[T any] struct {
	candidates []*Section[T]
	optional   bool
}

func (o *oneOf[T]) apply(ev *evaluation[T]) error {
	for _, c := range o.candidates {
		v, pos, err := c.match(ev)
		if err != nil {
			continue
		}
		ev.pos = pos
		return c.assignTo(v, ev)
	}
	if o.optional {
		return nil
	}
	return &MatchError{Section: o.name(), Line: ev.pos}
}

func (o *oneOf[T]) name() string {
	names := make([]string, len(o.candidates))
	for i, c := range o.candidates {
		names[i] = c.name
	}
	return "oneOf(" + strings.Join(names, "|") + ")"
}

// repeat applies a section until it stops matching. Each success runs the
// section's assign before the next attempt.
type repeat[T any] struct {
	section *Section[T]
}

func (r *repeat[T]) apply(ev *evaluation[T]) error {
	for {
		v, pos, err := r.section.match(ev)
		if err != nil {
			return nil
		}
		progressed := pos > ev.pos
		ev.pos = pos
		if err := r.section.assignTo(v, ev); err != nil {
			return err
		}
		// a section that consumed no line would match forever
		if !progressed {
			return nil
		}
	}
}
