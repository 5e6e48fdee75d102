package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-extractor/internal/banks"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
)

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the supported banks and their document types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		locales := cfg.Locales()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-10s %-16s %-8s %s", "NAME", "BANK", "LOCALE", "DOCUMENTS")))
		for _, rs := range banks.All(reconcile.DefaultPolicy) {
			locale := rs.Locale
			if l, ok := locales[rs.Name]; ok {
				locale = l
			}
			var types []string
			for _, dt := range rs.DocumentTypes {
				types = append(types, dt.Name())
			}
			line := fmt.Sprintf("%-10s %-16s %-8s %s", rs.Name, rs.Label, locale.Name(), strings.Join(types, ", "))
			if !cfg.Enabled(rs.Name) {
				line = warnStyle.Render(line + " (disabled)")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(banksCmd)
}
