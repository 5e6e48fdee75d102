// Package extractor turns input files into documents for the rule engine.
// PDFs go through ledongthuc/pdf first and the poppler pdftotext command
// second; text files are taken as they are.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/statement-extractor/internal/parser"
)

// ErrUnreadable is returned when no method produced readable text, which
// usually means the PDF is scanned or uses an undecodable font encoding.
var ErrUnreadable = errors.New("no readable text could be extracted; the file may be image-based or use custom font encodings")

// Load reads the file at path into a document.
func Load(path string) (*parser.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return FromBytes(filepath.Base(path), data)
}

// FromBytes builds a document from an uploaded file. Anything that does
// not start with the PDF magic bytes is treated as plain text.
func FromBytes(filename string, data []byte) (*parser.Document, error) {
	if !IsPDF(data) {
		return parser.NewDocument(filename, strings.ReplaceAll(string(data), "\r\n", "\n")), nil
	}
	pages, err := Pages(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return parser.NewDocument(filename, strings.Join(pages, "\n")), nil
}

// IsPDF reports whether data looks like a PDF file.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), []byte("%PDF-"))
}

// Pages returns the text of each page of a PDF.
func Pages(data []byte) ([]string, error) {
	pages, libErr := extractWithLibrary(data)
	if libErr == nil && isReadable(pages) {
		return pages, nil
	}

	pages, popplerErr := extractWithPdftotext(data)
	if popplerErr == nil && isReadable(pages) {
		return pages, nil
	}

	if libErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, libErr)
	}
	return nil, ErrUnreadable
}

// textQuality is the share of characters a statement normally consists
// of. Identity-encoded fonts decode to runs of symbols and accented
// letters, so the check is stricter than unicode.IsLetter.
func textQuality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r)) ||
				strings.ContainsRune("£$€%&@#+=*<>|äöüÄÖÜß", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear on practically every statement or contract note.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"opening", "closing", "transfer", "page", "period",
	"isin", "betrag", "datum", "kauf", "verkauf", "dividende", "konto",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadable requires some text, mostly ordinary characters and at least
// one word a statement would contain.
func isReadable(pages []string) bool {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n > 50 && textQuality(pages) > 0.6 && containsCommonWords(pages)
}

// extractWithPdftotext runs poppler's pdftotext in layout mode, which
// copes with CID fonts the Go reader cannot map. Pages are separated by
// form feeds in its output.
func extractWithPdftotext(data []byte) ([]string, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	f, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	out, err := exec.Command(bin, "-layout", f.Name(), "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	var pages []string
	for _, page := range strings.Split(string(out), "\f") {
		if text := strings.TrimRight(page, " \n"); strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, errors.New("pdftotext produced no output")
	}
	return pages, nil
}

// extractWithLibrary tries the reader's extraction paths from the most to
// the least layout-preserving. The library panics on some malformed
// files, so panics become errors.
func extractWithLibrary(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("PDF has no pages")
	}

	for _, method := range []func(*pdf.Reader, int) []string{byRow, byContent, byPagePlainText} {
		pages = method(r, numPages)
		if isReadable(pages) {
			return pages, nil
		}
	}
	if text := byReaderPlainText(r); isReadable([]string{text}) {
		return []string{text}, nil
	}
	return pages, nil
}

func byRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

type glyphRun struct {
	x float64
	s string
}

// byContent rebuilds rows from positioned text: pieces on the same
// rounded baseline form a row, rows run top to bottom and a wide gap
// becomes a column separator.
func byContent(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rows := make(map[int][]glyphRun)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			y := int(math.Round(t.Y))
			rows[y] = append(rows[y], glyphRun{x: t.X, s: t.S})
		}
		ys := make([]int, 0, len(rows))
		for y := range rows {
			ys = append(ys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ys)))

		var lines []string
		for _, y := range ys {
			if line := joinRow(rows[y]); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func joinRow(runs []glyphRun) string {
	sort.Slice(runs, func(a, b int) bool { return runs[a].x < runs[b].x })
	var b strings.Builder
	for j, run := range runs {
		if j > 0 && run.x-runs[j-1].x > 15 {
			b.WriteString("  ")
		}
		b.WriteString(run.s)
	}
	return strings.TrimSpace(b.String())
}

func byPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

func byReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
