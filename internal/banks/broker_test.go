package banks

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
	"github.com/insightdelivered/statement-extractor/internal/securities"
)

func extractBroker(t *testing.T, lines ...string) *extract.Result {
	t.Helper()
	e, err := extract.New(
		[]extract.RuleSet{Broker(reconcile.DefaultPolicy)},
		extract.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		extract.WithSecurities(securities.NewCache()),
		extract.WithVerify(reconcile.DefaultPolicy),
	)
	require.NoError(t, err)
	return e.Extract(parser.NewDocument("note.pdf", strings.Join(lines, "\n")))
}

func TestBrokerBuy(t *testing.T) {
	res := extractBroker(t,
		"Kauf",
		"ISIN US1234567890 ACME CORP",
		"Shares 10",
		"Price 25,00 EUR",
		"Amount 250,00 EUR",
	)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)

	buy, ok := res.Items[0].Trade()
	require.True(t, ok)
	assert.Equal(t, models.Buy, buy.Type)
	assert.Equal(t, "US1234567890", buy.Security.ISIN)
	assert.Equal(t, "ACME CORP", buy.Security.Name)
	assert.Equal(t, int64(10*convert.SharesFactor), buy.Shares)
	assert.Equal(t, models.NewMoney("EUR", 25000), buy.Amount)
	assert.Empty(t, buy.Units())
}

func TestBrokerSellWithCharges(t *testing.T) {
	res := extractBroker(t,
		"Belegdatum 03.05.2024",
		"Verkauf",
		"ISIN DE0005140008 DEUTSCHE BANK AG NA O.N.",
		"Stück 1.000",
		"Kurs 14,2150 EUR",
		"Kurswert 14.215,00 EUR",
		"Provision 9,90 EUR",
		"Börsengebühr 1,50 EUR",
		"Kapitalertragsteuer 150,00 EUR",
		"Solidaritätszuschlag 8,25 EUR",
		"Betrag 14.045,35 EUR",
	)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)

	sell, _ := res.Items[0].Trade()
	assert.Equal(t, models.Sell, sell.Type)
	assert.Equal(t, int64(1000*convert.SharesFactor), sell.Shares)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), sell.Date, "falls back to the voucher date")
	assert.Equal(t, models.NewMoney("EUR", 1140), sell.Sum(models.UnitFee, "EUR"))
	assert.Equal(t, models.NewMoney("EUR", 15825), sell.Sum(models.UnitTax, "EUR"))
	assert.Equal(t, models.NewMoney("EUR", 1421500), sell.GrossValue())
}

func TestBrokerSellChargeOrder(t *testing.T) {
	tests := []struct {
		name    string
		charges []string
	}{
		{"fees first", []string{"Provision 9,90 EUR", "Börsengebühr 1,50 EUR", "Kapitalertragsteuer 150,00 EUR", "Solidaritätszuschlag 8,25 EUR"}},
		{"taxes first", []string{"Kapitalertragsteuer 150,00 EUR", "Solidaritätszuschlag 8,25 EUR", "Provision 9,90 EUR", "Börsengebühr 1,50 EUR"}},
		{"tax between fees", []string{"Provision 9,90 EUR", "Kapitalertragsteuer 150,00 EUR", "Börsengebühr 1,50 EUR", "Solidaritätszuschlag 8,25 EUR"}},
		{"interleaved", []string{"Kapitalertragsteuer 150,00 EUR", "Provision 9,90 EUR", "Solidaritätszuschlag 8,25 EUR", "Börsengebühr 1,50 EUR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{
				"Verkauf",
				"ISIN DE0005140008 DEUTSCHE BANK AG NA O.N.",
				"Stück 1.000",
				"Kurswert 14.215,00 EUR",
			}
			lines = append(lines, tt.charges...)
			lines = append(lines, "Betrag 14.045,35 EUR")

			res := extractBroker(t, lines...)
			require.Empty(t, res.Errors)
			require.Len(t, res.Items, 1)

			sell, _ := res.Items[0].Trade()
			assert.Equal(t, models.NewMoney("EUR", 990+150), sell.Sum(models.UnitFee, "EUR"))
			assert.Equal(t, models.NewMoney("EUR", 15000+825), sell.Sum(models.UnitTax, "EUR"))
			assert.Len(t, sell.Units(), 4)
		})
	}
}

func TestBrokerBuyInForeignCurrency(t *testing.T) {
	res := extractBroker(t,
		"Kauf",
		"ISIN US0378331005 APPLE INC",
		"Shares 5",
		"Date 12.03.2024 15:42",
		"Gross 850,00 USD",
		"Exchange rate EUR/USD 1,0900",
		"Fremde Spesen 2,18 USD",
		"Provision 4,90 EUR",
		"Amount 786,72 EUR",
	)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Items[0].Failure)

	buy, _ := res.Items[0].Trade()
	assert.Equal(t, time.Date(2024, 3, 12, 15, 42, 0, 0, time.UTC), buy.Date)

	fees := buy.Sum(models.UnitFee, "EUR")
	assert.Equal(t, int64(200+490), fees.Amount, "USD fee converted at the note's rate")

	gross, ok := buy.Unit(models.UnitGrossValue)
	require.True(t, ok)
	assert.Equal(t, models.NewMoney("EUR", 77982), gross.Amount)
	assert.Equal(t, models.NewMoney("USD", 85000), *gross.Forex)
}

func TestBrokerBuyGrossMismatch(t *testing.T) {
	res := extractBroker(t,
		"Kauf",
		"ISIN US1234567890 ACME CORP",
		"Shares 10",
		"Kurswert 250,00 EUR",
		"Provision 5,00 EUR",
		"Amount 250,00 EUR",
	)
	assert.Empty(t, res.Items)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, extract.FieldValidation, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Reason, "does not match gross")
	assert.Equal(t, extract.LayoutMismatch, res.Errors[1].Kind)
}

func TestBrokerRepeatedTrades(t *testing.T) {
	note := func(isin, shares, amount string) []string {
		return []string{"Kauf", "ISIN " + isin + " X", "Shares " + shares, "Provision 1,00 EUR", "Amount " + amount + " EUR"}
	}
	var lines []string
	lines = append(lines, note("US1234567890", "1", "11,00")...)
	lines = append(lines, note("US0378331005", "2", "21,00")...)
	lines = append(lines, note("DE0005140008", "3", "31,00")...)

	res := extractBroker(t, lines...)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 3)
	for i, item := range res.Items {
		buy, _ := item.Trade()
		assert.Len(t, buy.Units(), 1, "trade %d keeps only its own fee", i)
		assert.Equal(t, int64(i+1)*convert.SharesFactor, buy.Shares)
	}
}

func dividendLines(charges ...string) []string {
	lines := []string{
		"Dividende",
		"ISIN US0378331005 APPLE INC",
		"Stück 100",
		"Zahltag 15.02.2024",
		"Devisenkurs EUR/USD 1,0850",
		"Brutto 24,00 USD",
		"Brutto 22,12 EUR",
	}
	lines = append(lines, charges...)
	return append(lines, "Betrag 16,76 EUR")
}

func dividendNote(withholding ...string) []string {
	return dividendLines(append(withholding,
		"Kapitalertragsteuer 1,94 EUR",
		"Solidaritätszuschlag 0,10 EUR",
	)...)
}

func TestBrokerDividend(t *testing.T) {
	res := extractBroker(t, dividendNote("Quellensteuer 3,60 USD")...)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Items[0].Failure)

	div, ok := res.Items[0].Transaction()
	require.True(t, ok)
	assert.Equal(t, models.Dividends, div.Type)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), div.Date)
	assert.Equal(t, models.NewMoney("EUR", 1676), div.Amount)
	assert.Equal(t, int64(100*convert.SharesFactor), div.Shares)

	gross, ok := div.Unit(models.UnitGrossValue)
	require.True(t, ok)
	assert.Equal(t, models.NewMoney("EUR", 2212), gross.Amount)
	assert.Equal(t, models.NewMoney("USD", 2400), *gross.Forex)

	assert.Equal(t, models.NewMoney("EUR", 332+194+10), div.Sum(models.UnitTax, "EUR"))
	assert.Equal(t, models.NewMoney("EUR", 2212), div.GrossValue())
}

func TestBrokerDividendWithholdingPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		label string
		tax   int64
	}{
		{"outright only", []string{"Quellensteuer 3,60 USD"}, reconcile.LabelWithholding, 332},
		{"outright then creditable", []string{"Quellensteuer 3,60 USD", "Anrechenbare Quellensteuer 3,32 EUR"}, reconcile.LabelWithholding, 332},
		{"creditable then outright", []string{"Anrechenbare Quellensteuer 3,32 EUR", "Quellensteuer 3,60 USD"}, reconcile.LabelWithholding, 332},
		{"creditable only", []string{"Anrechenbare Quellensteuer 3,32 EUR"}, reconcile.LabelCreditable, 332},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractBroker(t, dividendNote(tt.lines...)...)
			require.Empty(t, res.Errors)
			require.Len(t, res.Items, 1)
			div, _ := res.Items[0].Transaction()

			var withholding []models.Unit
			for _, u := range div.Units() {
				if u.Label == reconcile.LabelWithholding || u.Label == reconcile.LabelCreditable {
					withholding = append(withholding, u)
				}
			}
			require.Len(t, withholding, 1)
			assert.Equal(t, tt.label, withholding[0].Label)
			assert.Equal(t, tt.tax, withholding[0].Amount.Amount)
		})
	}
}

func TestBrokerDividendChargeOrder(t *testing.T) {
	tests := []struct {
		name    string
		charges []string
		label   string
	}{
		{"withholding last", []string{"Kapitalertragsteuer 1,94 EUR", "Solidaritätszuschlag 0,10 EUR", "Quellensteuer 3,60 USD"}, reconcile.LabelWithholding},
		{"withholding between taxes", []string{"Kapitalertragsteuer 1,94 EUR", "Quellensteuer 3,60 USD", "Solidaritätszuschlag 0,10 EUR"}, reconcile.LabelWithholding},
		{"creditable last", []string{"Kapitalertragsteuer 1,94 EUR", "Solidaritätszuschlag 0,10 EUR", "Anrechenbare Quellensteuer 3,32 EUR"}, reconcile.LabelCreditable},
		{"creditable after outright", []string{"Quellensteuer 3,60 USD", "Kapitalertragsteuer 1,94 EUR", "Anrechenbare Quellensteuer 3,32 EUR", "Solidaritätszuschlag 0,10 EUR"}, reconcile.LabelWithholding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractBroker(t, dividendLines(tt.charges...)...)
			require.Empty(t, res.Errors)
			require.Len(t, res.Items, 1)
			assert.Empty(t, res.Items[0].Failure)

			div, _ := res.Items[0].Transaction()
			assert.Equal(t, models.NewMoney("EUR", 332+194+10), div.Sum(models.UnitTax, "EUR"))

			var labels []string
			for _, u := range div.Units() {
				if u.Type == models.UnitTax && u.Label != "" {
					labels = append(labels, u.Label)
				}
			}
			assert.Equal(t, []string{tt.label}, labels)
		})
	}
}

func TestBrokerDividendChecksHomeGross(t *testing.T) {
	lines := dividendNote("Quellensteuer 3,60 USD")
	lines[len(lines)-1] = "Betrag 18,76 EUR"

	res := extractBroker(t, lines...)
	assert.Empty(t, res.Items)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, extract.FieldValidation, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Reason, "does not match gross")
}

func TestBrokerDividendRecomputesForex(t *testing.T) {
	lines := dividendNote("Quellensteuer 3,60 USD")
	for i, l := range lines {
		if l == "Brutto 24,00 USD" {
			lines[i] = "Brutto 26,00 USD"
		}
	}
	res := extractBroker(t, lines...)
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Items[0].Failure)

	div, _ := res.Items[0].Transaction()
	gross, _ := div.Unit(models.UnitGrossValue)
	assert.Equal(t, models.NewMoney("EUR", 2212), gross.Amount, "home amount wins")
	assert.Equal(t, models.NewMoney("USD", 2400), *gross.Forex)
}

func TestBrokerTaxRefundUsesTradeSecurity(t *testing.T) {
	res := extractBroker(t,
		"Belegdatum 10.06.2024",
		"Verkauf",
		"ISIN US1234567890 ACME CORP",
		"Shares 10",
		"Amount 300,00 EUR",
		"Steuerkorrektur",
		"Erstattung 12,34 EUR",
	)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 2)

	sell, _ := res.Items[0].Trade()
	refund, ok := res.Items[1].Transaction()
	require.True(t, ok)
	assert.Equal(t, models.TaxRefund, refund.Type)
	assert.Equal(t, models.NewMoney("EUR", 1234), refund.Amount)
	assert.Same(t, sell.Security, refund.Security)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), refund.Date)
	assert.Equal(t, "Steuerkorrektur", res.Items[1].DocumentType)
}

func TestBrokerTaxRefundOwnSecurity(t *testing.T) {
	res := extractBroker(t,
		"Steuerkorrektur",
		"ISIN DE0005140008 DEUTSCHE BANK AG",
		"Erstattung 5,00 EUR",
	)
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)
	refund, _ := res.Items[0].Transaction()
	assert.Equal(t, "DE0005140008", refund.Security.ISIN)
}

func TestBrokerTaxRefundWithoutSecurity(t *testing.T) {
	res := extractBroker(t, "Steuerkorrektur", "Erstattung 5,00 EUR")
	assert.Empty(t, res.Items)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, extract.LayoutMismatch, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Reason, "oneOf(refundSecurity|notedSecurity)")
}

func TestBrokerCancellationExcluded(t *testing.T) {
	res := extractBroker(t,
		"Storno",
		"Kauf",
		"ISIN US1234567890 ACME CORP",
		"Shares 10",
		"Amount 250,00 EUR",
	)
	assert.Empty(t, res.Items)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, extract.DocumentUnrecognized, res.Errors[0].Kind)
}
