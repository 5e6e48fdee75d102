// Package cmd implements the statement-extractor command line.
//
//	statement-extractor
//	├── extract   extract items from statement files
//	├── serve     run the HTTP API
//	├── banks     list the supported banks
//	└── version   print version information
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-extractor/internal/config"
	"github.com/insightdelivered/statement-extractor/internal/logging"
)

var (
	// cfgFile is optional; without it defaults and the environment apply.
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "statement-extractor",
	Short: "Extract transactions from bank statements and broker contract notes",
	Long: `statement-extractor reads bank statements and broker contract notes (PDF or
text) and turns them into typed transactions: buys and sells with fees and
taxes, dividends with withholding, and current-account movements.

Supported banks are described by rule sets; run "statement-extractor banks"
to list them. Documents no rule set recognizes are reported, never guessed.

Examples:
  statement-extractor extract statement.pdf
  statement-extractor extract --bank hsbc --format xlsx --output jan.xlsx jan.pdf
  statement-extractor serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; main calls it once.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
}

// setup loads the configuration and builds the logger every command uses.
// Logs go to stderr so that stdout can carry extracted data.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
