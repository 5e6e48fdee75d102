package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/extractor"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/writer"
)

var extractFlags struct {
	banks       []string
	format      string
	output      string
	concurrency int
	verify      bool
	errors      bool
}

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract transactions from statement files",
	Long: `Extract reads each file (PDF, or text already extracted from one), runs the
supported rule sets over it and writes the items found.

Without --output every input gets its own output file next to it, named
after the input with the format's extension. With --output all items go to
that one file; "-" writes to standard output.

Each document is processed independently; a document that fails to parse
does not affect the others.`,
	Example: `  statement-extractor extract statement.pdf
  statement-extractor extract --bank metro jan.pdf feb.pdf mar.pdf
  statement-extractor extract --format json --output - note.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringSliceVarP(&extractFlags.banks, "bank", "b", nil, "restrict to these banks (see 'banks'); auto-detected when omitted")
	f.StringVarP(&extractFlags.format, "format", "f", "csv", "output format: "+strings.Join(writer.Formats, ", "))
	f.StringVarP(&extractFlags.output, "output", "o", "", "output file for all items, '-' for stdout")
	f.IntVarP(&extractFlags.concurrency, "concurrency", "c", 0, "documents processed in parallel (default from config)")
	f.BoolVar(&extractFlags.verify, "verify", false, "record currency conversion mismatches as item failures")
	f.BoolVar(&extractFlags.errors, "errors", true, "include extraction errors in CSV output")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Extract.Concurrency = extractFlags.concurrency
	}
	if cmd.Flags().Changed("verify") {
		cfg.Extract.Verify = extractFlags.verify
	}

	w, err := writer.New(extractFlags.format, extractFlags.errors)
	if err != nil {
		return err
	}
	e, err := extractorFactory(cfg, logger, nil)(extractFlags.banks)
	if err != nil {
		return err
	}

	status := cmd.ErrOrStderr()

	var (
		docs   []*parser.Document
		inputs []string
		failed int
	)
	for _, path := range args {
		doc, err := extractor.Load(path)
		if err != nil {
			fmt.Fprintln(status, errorStyle.Render("✗ ")+pathStyle.Render(path)+": "+err.Error())
			failed++
			continue
		}
		docs = append(docs, doc)
		inputs = append(inputs, path)
	}

	results, err := e.ExtractAll(cmd.Context(), docs, cfg.Extract.Concurrency)
	if err != nil {
		return fmt.Errorf("extraction interrupted: %w", err)
	}

	for i, res := range results {
		if !report(status, inputs[i], res) {
			failed++
		}
	}

	if err := writeResults(cmd.OutOrStdout(), status, w, inputs, results); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) produced no items", failed, len(args))
	}
	return nil
}

// report prints one status block per document and tells whether it
// produced any items.
func report(out io.Writer, path string, res *extract.Result) bool {
	var bank string
	if len(res.Items) > 0 {
		bank = res.Items[0].Bank
	}
	switch {
	case len(res.Items) == 0:
		fmt.Fprintln(out, errorStyle.Render("✗ ")+pathStyle.Render(path)+": no items")
	case len(res.Errors) > 0:
		fmt.Fprintln(out, warnStyle.Render("! ")+pathStyle.Render(path)+": "+
			fmt.Sprintf("%d item(s), %d error(s) ", len(res.Items), len(res.Errors))+infoStyle.Render(bank))
	default:
		fmt.Fprintln(out, successStyle.Render("✓ ")+pathStyle.Render(path)+": "+
			fmt.Sprintf("%d item(s) ", len(res.Items))+infoStyle.Render(bank))
	}
	for _, e := range res.Errors {
		fmt.Fprintln(out, "    "+warnStyle.Render(e.Error()))
	}
	return len(res.Items) > 0
}

func writeResults(stdout, status io.Writer, w writer.Writer, inputs []string, results []*extract.Result) error {
	switch extractFlags.output {
	case "-":
		return w.Write(stdout, results)
	case "":
		for i, res := range results {
			if len(res.Items) == 0 {
				continue
			}
			path := outputPath(inputs[i], extractFlags.format)
			if err := writer.WriteToFile(w, path, []*extract.Result{res}); err != nil {
				return err
			}
			fmt.Fprintln(status, "  output: "+pathStyle.Render(path))
		}
		return nil
	default:
		if err := writer.WriteToFile(w, extractFlags.output, results); err != nil {
			return err
		}
		fmt.Fprintln(status, "  output: "+pathStyle.Render(extractFlags.output))
		return nil
	}
}

// outputPath places the output next to the input, e.g. jan.pdf becomes
// jan.csv.
func outputPath(input, format string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "." + format
}
