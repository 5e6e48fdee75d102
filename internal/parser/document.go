// Package parser is the rule engine that turns statement text into
// transactions. Rule sets are declared as DocumentTypes owning Blocks; each
// Block binds a Transaction whose Sections walk the block's lines with a
// forward-only cursor.
package parser

import "regexp"

var lineBreak = regexp.MustCompile(`\r?\n`)

// Document is one statement rendered as text.
type Document struct {
	Filename string
	Text     string
	Lines    []string
}

// NewDocument splits text into lines. Lines are kept verbatim so that
// fixed-width layouts survive.
func NewDocument(filename, text string) *Document {
	return &Document{
		Filename: filename,
		Text:     text,
		Lines:    lineBreak.Split(text, -1),
	}
}
