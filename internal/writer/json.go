package writer

import (
	"encoding/json"
	"io"

	"github.com/insightdelivered/statement-extractor/internal/extract"
)

// JSONWriter writes the results as they are, items with their full
// subjects and units.
type JSONWriter struct {
	Indent bool
}

// Batch is the JSON document written by JSONWriter.
type Batch struct {
	Results []*extract.Result `json:"results"`
	Count   int               `json:"count"`
	Errors  int               `json:"errors"`
}

func (w *JSONWriter) Write(out io.Writer, results []*extract.Result) error {
	batch := Batch{Results: results}
	for _, r := range results {
		batch.Count += len(r.Items)
		batch.Errors += len(r.Errors)
	}
	enc := json.NewEncoder(out)
	if w.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(batch)
}
