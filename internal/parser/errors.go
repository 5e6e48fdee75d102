package parser

import "fmt"

// MatchError means the lines of a block did not fit a required section.
type MatchError struct {
	Section string
	Step    string
	// Line is the 0-based cursor position where matching gave up.
	Line int
}

func (e *MatchError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("line %d: section %q did not match", e.Line+1, e.Section)
	}
	return fmt.Sprintf("line %d: section %q: %s did not match", e.Line+1, e.Section, e.Step)
}

// ValidationError is an assign, conclude or wrap callback rejecting the
// values it was given.
type ValidationError struct {
	Section string
	Line    int
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: section %q: %v", e.Line+1, e.Section, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// FaultError is a panic recovered while running rules.
type FaultError struct {
	Value any
	Stack []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("unexpected fault: %v", e.Value)
}
