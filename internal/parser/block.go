package parser

import (
	"errors"
	"fmt"
	"regexp"
)

// Range is a half-open line interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int { return r.End - r.Start }

// Block locates the occurrences of one kind of event in a document.
type Block struct {
	pattern string
	start   *regexp.Regexp
	end     *regexp.Regexp
	maxSize int
	runner  Runner
}

// NewBlock opens an occurrence at every line matching start.
func NewBlock(start string) *Block {
	return &Block{pattern: start, start: compileLine(start)}
}

// EndsWith closes an occurrence at the first line matching pattern,
// searched from the start line on. The closing line is included.
func (b *Block) EndsWith(pattern string) *Block {
	b.end = compileLine(pattern)
	return b
}

// MaxSize limits an occurrence to n lines.
func (b *Block) MaxSize(n int) *Block {
	b.maxSize = n
	return b
}

// Set binds the transaction run for each occurrence.
func (b *Block) Set(r Runner) *Block {
	b.runner = r
	return b
}

func (b *Block) String() string { return b.pattern }

func (b *Block) Validate() error {
	if b.runner == nil {
		return fmt.Errorf("block %q: no transaction", b.pattern)
	}
	if b.maxSize < 0 {
		return errors.New("block max size must not be negative")
	}
	if err := b.runner.Validate(); err != nil {
		return fmt.Errorf("block %q: %w", b.pattern, err)
	}
	return nil
}

// Segment returns the occurrences of the block in lines, top to bottom.
// A start line inside an earlier occurrence does not open a new one. An
// occurrence ends at the earliest of the end pattern, the max size and the
// end of the document. Without end pattern and max size it ends before the
// next start line.
func (b *Block) Segment(lines []string) []Range {
	var out []Range
	n := len(lines)

	for i := 0; i < n; i++ {
		if !b.start.MatchString(lines[i]) {
			continue
		}

		end := n
		if b.maxSize > 0 && i+b.maxSize < end {
			end = i + b.maxSize
		}

		switch {
		case b.end != nil:
			for j := i; j < end; j++ {
				if b.end.MatchString(lines[j]) {
					end = j + 1
					break
				}
			}
		case b.maxSize == 0:
			for j := i + 1; j < end; j++ {
				if b.start.MatchString(lines[j]) {
					end = j
					break
				}
			}
		}

		out = append(out, Range{Start: i, End: end})
		i = end - 1
	}
	return out
}
