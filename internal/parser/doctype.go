package parser

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// DocumentType recognizes one kind of statement and owns the blocks that
// extract its transactions.
type DocumentType struct {
	name     string
	markers  []string
	excludes []string
	context  *Transaction[*Context]
	blocks   []*Block
}

// NewDocumentType returns a document type that applies when every marker
// occurs in the text.
func NewDocumentType(name string, markers ...string) *DocumentType {
	return &DocumentType{
		name:    name,
		markers: markers,
		context: NewTransaction[*Context](nil),
	}
}

func (d *DocumentType) Name() string { return d.name }

func (d *DocumentType) Markers() []string { return d.markers }

func (d *DocumentType) Excludes() []string { return d.excludes }

// Exclude rejects documents containing any of the markers.
func (d *DocumentType) Exclude(markers ...string) *DocumentType {
	d.excludes = append(d.excludes, markers...)
	return d
}

func (d *DocumentType) AddBlock(b *Block) *DocumentType {
	d.blocks = append(d.blocks, b)
	return d
}

func (d *DocumentType) Blocks() []*Block { return d.blocks }

// Section declares a document-level section, run once over the whole
// document before any block. Its captures are exported into the context
// unless another assign is set.
func (d *DocumentType) Section(name string, steps ...Step) *Section[*Context] {
	return d.context.Section(name, steps...).Assign(ExportAll)
}

// Context gives access to the document-level transaction for OneOf and
// Repeat declarations.
func (d *DocumentType) Context() *Transaction[*Context] { return d.context }

// ExportAll exports every captured field into the context.
func ExportAll(v *Values, ctx *Context, _ *Context) error {
	for k, s := range v.fields {
		ctx.Export(k, s)
	}
	return nil
}

// Matches reports whether every marker and no exclude occurs in text.
func (d *DocumentType) Matches(text string) bool {
	return d.Accepts(func(marker string) bool {
		return strings.Contains(text, marker)
	})
}

// Accepts is Matches with a precomputed presence test.
func (d *DocumentType) Accepts(present func(marker string) bool) bool {
	for _, m := range d.markers {
		if !present(m) {
			return false
		}
	}
	for _, m := range d.excludes {
		if present(m) {
			return false
		}
	}
	return true
}

func (d *DocumentType) Validate() error {
	if d.name == "" {
		return errors.New("document type has no name")
	}
	if len(d.markers) == 0 {
		return fmt.Errorf("document type %q has no markers", d.name)
	}
	if len(d.blocks) == 0 {
		return fmt.Errorf("document type %q has no blocks", d.name)
	}
	for _, b := range d.blocks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("document type %q: %w", d.name, err)
		}
	}
	return nil
}

// ExtractContext runs the document-level sections once over all lines.
// When it fails, ctx is left as it was before the call.
func (d *DocumentType) ExtractContext(doc *Document, ctx *Context) (err error) {
	if len(d.context.nodes) == 0 {
		return nil
	}
	saved := ctx.snapshot()
	defer func() {
		if p := recover(); p != nil {
			err = &FaultError{Value: p, Stack: debug.Stack()}
		}
		if err != nil {
			ctx.restore(saved)
		}
	}()
	return d.context.evaluate(doc.Lines, Range{Start: 0, End: len(doc.Lines)}, ctx, ctx)
}

// Outcome is the result of one block occurrence.
type Outcome struct {
	Block string
	Range Range
	Item  *models.Item
	Err   error
}

// Parse runs every block over the document, block by block in declaration
// order and each block's occurrences top to bottom. Context writes of
// earlier occurrences are visible to later ones.
func (d *DocumentType) Parse(doc *Document, ctx *Context) []Outcome {
	var out []Outcome
	for _, b := range d.blocks {
		for _, r := range b.Segment(doc.Lines) {
			item, err := run(b.runner, doc, r, ctx)
			out = append(out, Outcome{Block: b.pattern, Range: r, Item: item, Err: err})
		}
	}
	return out
}

func run(r Runner, doc *Document, rg Range, ctx *Context) (item *models.Item, err error) {
	defer func() {
		if p := recover(); p != nil {
			item = nil
			err = &FaultError{Value: p, Stack: debug.Stack()}
		}
	}()
	return r.Run(doc, rg, ctx)
}
