package extract

import (
	"fmt"
	"strings"
)

// Kind classifies a recorded extraction error.
type Kind string

const (
	// DocumentUnrecognized: no rule set recognized the document.
	DocumentUnrecognized Kind = "DocumentUnrecognized"
	// LayoutMismatch: the document was recognized but its lines did not fit.
	LayoutMismatch Kind = "LayoutMismatch"
	// FieldValidation: a value was present but rejected.
	FieldValidation Kind = "FieldValidation"
	// UnexpectedFault: anything else; logged with full detail.
	UnexpectedFault Kind = "UnexpectedFault"
)

// Error is one non-fatal problem found while extracting a document.
type Error struct {
	Kind         Kind   `json:"kind"`
	Bank         string `json:"bank,omitempty"`
	Filename     string `json:"filename"`
	DocumentType string `json:"documentType,omitempty"`
	// Line is 1-based; 0 when the error concerns the whole document.
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Filename)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	if e.Bank != "" {
		fmt.Fprintf(&b, "%s: ", e.Bank)
	}
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Reason)
	return b.String()
}
