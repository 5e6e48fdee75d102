package cmd

import (
	"log/slog"

	"github.com/insightdelivered/statement-extractor/internal/api"
	"github.com/insightdelivered/statement-extractor/internal/banks"
	"github.com/insightdelivered/statement-extractor/internal/config"
	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
	"github.com/insightdelivered/statement-extractor/internal/securities"
)

// extractorFactory builds extractors from the configuration. Every
// extractor gets its own security cache, so one CLI batch or one API
// request shares identities and nothing else. Without names the enabled
// rule sets apply; named rule sets are used even when disabled.
func extractorFactory(cfg *config.Config, logger *slog.Logger, observer extract.Observer) api.ExtractorFactory {
	policy := reconcile.Policy{Tolerance: cfg.Reconcile.ToleranceMinorUnits}

	return func(names []string) (*extract.Extractor, error) {
		ruleSets, err := banks.Select(policy, names...)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			enabled := ruleSets[:0]
			for _, rs := range ruleSets {
				if cfg.Enabled(rs.Name) {
					enabled = append(enabled, rs)
				}
			}
			ruleSets = enabled
		}

		opts := []extract.Option{
			extract.WithLogger(logger),
			extract.WithSecurities(securities.NewCache()),
		}
		for name, l := range cfg.Locales() {
			opts = append(opts, extract.WithLocale(name, l))
		}
		if cfg.Extract.Verify {
			opts = append(opts, extract.WithVerify(policy))
		}
		if observer != nil {
			opts = append(opts, extract.WithObserver(observer))
		}
		return extract.New(ruleSets, opts...)
	}
}
