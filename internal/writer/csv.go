package writer

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/insightdelivered/statement-extractor/internal/extract"
)

// Writer renders a batch of results.
type Writer interface {
	Write(out io.Writer, results []*extract.Result) error
}

// Formats lists the names accepted by New.
var Formats = []string{"csv", "xlsx", "json"}

// New returns the writer for format.
func New(format string, includeErrors bool) (Writer, error) {
	switch format {
	case "csv":
		return &CSVWriter{IncludeErrors: includeErrors}, nil
	case "xlsx":
		return &XLSXWriter{}, nil
	case "json":
		return &JSONWriter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WriteToFile writes results to a file at the given path.
func WriteToFile(w Writer, path string, results []*extract.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CSVWriter writes one row per item. With IncludeErrors set, every
// recorded error follows as a row whose first field starts with '#'.
type CSVWriter struct {
	IncludeErrors bool
}

func (w *CSVWriter) Write(out io.Writer, results []*extract.Result) error {
	csvw := gocsv.DefaultCSVWriter(out)

	rows := Rows(results)
	if rows == nil {
		rows = []Row{}
	}
	if err := gocsv.MarshalCSV(rows, csvw); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}

	if w.IncludeErrors {
		for _, e := range Errors(results) {
			record := []string{"# error", string(e.Kind), e.Filename, strconv.Itoa(e.Line), e.Bank, e.DocumentType, e.Reason}
			if err := csvw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV error row: %w", err)
			}
		}
	}

	csvw.Flush()
	return csvw.Error()
}
