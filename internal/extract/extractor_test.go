package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
	"github.com/insightdelivered/statement-extractor/internal/securities"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// buyRules recognizes "Kauf" notes. A security named PANIC makes the
// security section panic.
func buyRules() RuleSet {
	tx := parser.NewTransaction(models.NewBuySellEntry)

	tx.Section("type", parser.Match(`Kauf`)).
		Assign(func(v *parser.Values, ctx *parser.Context, e *models.BuySellEntry) error {
			e.Type = models.Buy
			return nil
		})

	tx.Section("security", parser.Match(`ISIN (?P<isin>[A-Z]{2}[A-Z0-9]{9}[0-9]) (?P<name>.+)`)).
		Assign(func(v *parser.Values, ctx *parser.Context, e *models.BuySellEntry) error {
			if v.Get("name") == "PANIC" {
				panic("broken rule")
			}
			sec, err := ctx.Security(models.SecurityAttributes{ISIN: v.Get("isin"), Name: v.Get("name")})
			if err != nil {
				return err
			}
			e.Security = sec
			return nil
		})

	tx.Section("shares", parser.Match(`Shares (?P<shares>[\.,\d]+)`)).
		Assign(func(v *parser.Values, ctx *parser.Context, e *models.BuySellEntry) error {
			shares, err := v.Shares("shares")
			e.Shares = shares
			return err
		})

	tx.Section("amount",
		parser.Find(`Amount .*`),
		parser.Match(`Amount (?P<amount>[\.,\d]+) (?P<currency>[A-Z]{3})`),
	).Assign(func(v *parser.Values, ctx *parser.Context, e *models.BuySellEntry) error {
		m, err := v.Money("currency", "amount")
		e.Amount = m
		return err
	})

	tx.Wrap(func(e *models.BuySellEntry) (*models.Item, error) {
		return models.NewBuySellItem(e), nil
	})

	dt := parser.NewDocumentType("Kauf", "Kauf").
		AddBlock(parser.NewBlock(`Kauf`).EndsWith(`Amount .*`).Set(tx))

	return RuleSet{
		Name:          "test",
		Label:         "Test Broker",
		Identifiers:   []string{"ISIN"},
		Locale:        convert.German,
		DocumentTypes: []*parser.DocumentType{dt},
	}
}

func newExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := New([]RuleSet{buyRules()}, append([]Option{WithLogger(quiet)}, opts...)...)
	require.NoError(t, err)
	return e
}

func note(lines ...string) string { return strings.Join(lines, "\n") }

func buyNote(isin, name, shares, amount string) string {
	return note(
		"Kauf",
		"ISIN "+isin+" "+name,
		"Shares "+shares,
		"Price 25,00 EUR",
		"Amount "+amount+" EUR",
	)
}

func TestExtractBuy(t *testing.T) {
	e := newExtractor(t)
	res := e.Extract(parser.NewDocument("kauf.pdf", buyNote("US1234567890", "ACME CORP", "10", "250,00")))

	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)

	item := res.Items[0]
	assert.Equal(t, "BUY", item.Kind)
	assert.Equal(t, "kauf.pdf", item.Filename)
	assert.Equal(t, "Test Broker", item.Bank)
	assert.Equal(t, "Kauf", item.DocumentType)
	assert.Equal(t, 1, item.Line)
	assert.NotEmpty(t, item.ID)

	buy, ok := item.Trade()
	require.True(t, ok)
	assert.Equal(t, "US1234567890", buy.Security.ISIN)
	assert.Equal(t, int64(10*convert.SharesFactor), buy.Shares)
	assert.Equal(t, models.NewMoney("EUR", 25000), buy.Amount)
	assert.Empty(t, buy.Units())
}

func TestExtractUnrecognized(t *testing.T) {
	e := newExtractor(t)
	res := e.Extract(parser.NewDocument("letter.pdf", "Dear customer,\nthank you."))

	assert.Empty(t, res.Items)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, DocumentUnrecognized, res.Errors[0].Kind)
	assert.Equal(t, "letter.pdf", res.Errors[0].Filename)
}

func TestExtractIdentifierGatesRuleSet(t *testing.T) {
	e := newExtractor(t)
	// "Kauf" alone satisfies the document type but not the rule set
	res := e.Extract(parser.NewDocument("kauf.txt", "Kauf\nShares 10\nAmount 1,00 EUR"))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, DocumentUnrecognized, res.Errors[0].Kind)
}

func TestExtractLayoutMismatch(t *testing.T) {
	e := newExtractor(t)
	text := note("Kauf", "ISIN US1234567890 ACME CORP", "Quantity 10", "Amount 250,00 EUR")
	res := e.Extract(parser.NewDocument("odd.pdf", text))

	assert.Empty(t, res.Items)
	require.Len(t, res.Errors, 1)
	got := res.Errors[0]
	assert.Equal(t, LayoutMismatch, got.Kind)
	assert.Equal(t, "Test Broker", got.Bank)
	assert.Equal(t, 1, got.Line)
	assert.Contains(t, got.Reason, "shares")
}

// contextRules holds two document types sharing a marker. The first exports
// the currency and then fails on a required context line.
func contextRules() RuleSet {
	lineTx := func() *parser.Transaction[*models.AccountTransaction] {
		tx := parser.NewTransaction(models.NewAccountTransaction)
		tx.Section("value", parser.Match(`Wert (?P<amount>[\.,\d]+)`)).
			Assign(func(v *parser.Values, _ *parser.Context, a *models.AccountTransaction) error {
				amount, err := v.Amount("amount")
				a.Type = models.Deposit
				a.Amount = models.NewMoney("EUR", amount)
				a.Note = v.Get("currency")
				return err
			})
		tx.Wrap(func(a *models.AccountTransaction) (*models.Item, error) {
			return models.NewTransactionItem(a), nil
		})
		return tx
	}

	first := parser.NewDocumentType("first", "Kontoauszug")
	first.Section("currency", parser.Find(`Währung .*`), parser.Match(`Währung (?P<currency>[A-Z]{3})`))
	first.Section("closing", parser.Find(`NeverThere`))
	first.AddBlock(parser.NewBlock(`Wert .*`).MaxSize(1).Set(lineTx()))

	second := parser.NewDocumentType("second", "Kontoauszug")
	second.AddBlock(parser.NewBlock(`Wert .*`).MaxSize(1).Set(lineTx()))

	return RuleSet{
		Name:          "context",
		Label:         "Context Bank",
		Locale:        convert.German,
		DocumentTypes: []*parser.DocumentType{first, second},
	}
}

func TestExtractFailedContextIsolated(t *testing.T) {
	e, err := New([]RuleSet{contextRules()}, WithLogger(quiet))
	require.NoError(t, err)

	res := e.Extract(parser.NewDocument("k.pdf", note("Kontoauszug", "Währung USD", "Wert 1,00")))

	require.Len(t, res.Errors, 1)
	got := res.Errors[0]
	assert.Equal(t, LayoutMismatch, got.Kind)
	assert.Equal(t, "first", got.DocumentType)
	assert.Equal(t, 3, got.Line)
	assert.Contains(t, got.Reason, "line 3")

	require.Len(t, res.Items, 1)
	a, ok := res.Items[0].Transaction()
	require.True(t, ok)
	assert.Equal(t, "second", res.Items[0].DocumentType)
	assert.Empty(t, a.Note, "entries of the failed document type do not leak")
}

func TestExtractRecognizedWithoutBlocks(t *testing.T) {
	e := newExtractor(t)
	// markers present but no line opens a block
	res := e.Extract(parser.NewDocument("summary.pdf", "Ihre Kaufaufträge\nISIN"))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, LayoutMismatch, res.Errors[0].Kind)
	assert.Zero(t, res.Errors[0].Line)
}

func TestExtractFieldValidationKeepsSiblings(t *testing.T) {
	e := newExtractor(t)
	text := note(
		buyNote("US1234567890", "ACME CORP", "1,2,3", "250,00"),
		buyNote("US0378331005", "APPLE INC", "5", "900,00"),
	)
	res := e.Extract(parser.NewDocument("two.pdf", text))

	require.Len(t, res.Items, 1)
	buy, _ := res.Items[0].Trade()
	assert.Equal(t, "US0378331005", buy.Security.ISIN)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, FieldValidation, res.Errors[0].Kind)
	assert.Equal(t, 1, res.Errors[0].Line)

	var conv *convert.ConversionError
	assert.False(t, errors.As(res.Errors[0], &conv), "errors are flattened to a reason")
	assert.Contains(t, res.Errors[0].Reason, "1,2,3")
}

func TestExtractFaultIsIsolated(t *testing.T) {
	e := newExtractor(t)
	text := note(
		buyNote("US1234567890", "PANIC", "10", "250,00"),
		buyNote("US0378331005", "APPLE INC", "5", "900,00"),
	)
	res := e.Extract(parser.NewDocument("fault.pdf", text))

	require.Len(t, res.Items, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, UnexpectedFault, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Reason, "broken rule")
}

func TestExtractRepeatedBlocks(t *testing.T) {
	e := newExtractor(t)
	text := note(
		buyNote("US1234567890", "ACME CORP", "10", "250,00"),
		buyNote("US0378331005", "APPLE INC", "5", "900,00"),
		buyNote("DE0005140008", "DEUTSCHE BANK", "1.000", "9.870,50"),
	)
	res := e.Extract(parser.NewDocument("three.pdf", text))
	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 3)

	want := []struct {
		isin   string
		shares int64
		amount int64
		line   int
	}{
		{"US1234567890", 10 * convert.SharesFactor, 25000, 1},
		{"US0378331005", 5 * convert.SharesFactor, 90000, 6},
		{"DE0005140008", 1000 * convert.SharesFactor, 987050, 11},
	}
	ids := make(map[string]bool)
	for i, w := range want {
		buy, ok := res.Items[i].Trade()
		require.True(t, ok)
		assert.Equal(t, w.isin, buy.Security.ISIN, "item %d", i)
		assert.Equal(t, w.shares, buy.Shares, "item %d", i)
		assert.Equal(t, w.amount, buy.Amount.Amount, "item %d", i)
		assert.Equal(t, w.line, res.Items[i].Line, "item %d", i)
		ids[res.Items[i].ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestExtractIsIdempotent(t *testing.T) {
	text := note(
		buyNote("US1234567890", "ACME CORP", "10", "250,00"),
		buyNote("US0378331005", "APPLE INC", "5", "900,00"),
	)
	run := func() *Result {
		e := newExtractor(t, WithSecurities(securities.NewCache()))
		return e.Extract(parser.NewDocument("same.pdf", text))
	}
	first, second := run(), run()
	require.Len(t, first.Items, 2)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Errors, second.Errors)
}

func TestExtractSharesSecurities(t *testing.T) {
	cache := securities.NewCache()
	e := newExtractor(t, WithSecurities(cache))
	a := e.Extract(parser.NewDocument("a.pdf", buyNote("US1234567890", "ACME CORP", "1", "1,00")))
	b := e.Extract(parser.NewDocument("b.pdf", buyNote("US1234567890", "Acme Corporation", "2", "2,00")))

	ta, _ := a.Items[0].Trade()
	tb, _ := b.Items[0].Trade()
	assert.Same(t, ta.Security, tb.Security)
	assert.Equal(t, 1, cache.Len())
}

func TestExtractLocaleOverride(t *testing.T) {
	text := buyNote("US1234567890", "ACME CORP", "10", "1.234,50")

	german := newExtractor(t).Extract(parser.NewDocument("a.pdf", text))
	buy, _ := german.Items[0].Trade()
	assert.Equal(t, int64(123450), buy.Amount.Amount)

	english := newExtractor(t, WithLocale("test", convert.English)).Extract(parser.NewDocument("a.pdf", text))
	buy, _ = english.Items[0].Trade()
	assert.Equal(t, int64(123), buy.Amount.Amount)
}

func TestExtractVerify(t *testing.T) {
	rules := buyRules()
	tx := parser.NewTransaction(models.NewAccountTransaction)
	tx.Section("dividend",
		parser.Match(`Dividende (?P<amount>[\.,\d]+) (?P<currency>[A-Z]{3}) brutto (?P<gross>[\.,\d]+) (?P<grossCurrency>[A-Z]{3}) Kurs (?P<rate>[\.,\d]+)`),
	).Assign(func(v *parser.Values, ctx *parser.Context, t *models.AccountTransaction) error {
		t.Type = models.Dividends
		m, err := v.Money("currency", "amount")
		if err != nil {
			return err
		}
		t.Amount = m
		gross, err := v.Money("grossCurrency", "gross")
		if err != nil {
			return err
		}
		rate, err := v.Rate("rate")
		if err != nil {
			return err
		}
		// unit attached verbatim so that verification sees the mismatch
		r := models.NewExchangeRate(m.Currency, gross.Currency, rate)
		t.AddUnit(models.Unit{Type: models.UnitGrossValue, Amount: m, Forex: &gross, Rate: &r})
		return nil
	})
	tx.Wrap(func(t *models.AccountTransaction) (*models.Item, error) {
		return models.NewTransactionItem(t), nil
	})
	rules.DocumentTypes = append(rules.DocumentTypes, parser.NewDocumentType("Dividende", "Dividende").
		AddBlock(parser.NewBlock(`Dividende .*`).MaxSize(1).Set(tx)))

	e, err := New([]RuleSet{rules}, WithLogger(quiet), WithVerify(reconcile.DefaultPolicy))
	require.NoError(t, err)

	res := e.Extract(parser.NewDocument("div.pdf", note("ISIN", "Dividende 10,00 EUR brutto 20,00 USD Kurs 1,1000")))
	require.Len(t, res.Items, 1)
	assert.Contains(t, res.Items[0].Failure, "GROSS_VALUE")

	res = e.Extract(parser.NewDocument("div.pdf", note("ISIN", "Dividende 10,00 EUR brutto 11,00 USD Kurs 1,1000")))
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Items[0].Failure)
}

func TestNewRejectsInvalidRuleSets(t *testing.T) {
	_, err := New([]RuleSet{{Name: "x"}})
	assert.Error(t, err)

	rules := buyRules()
	rules.DocumentTypes = append(rules.DocumentTypes, parser.NewDocumentType("empty", "X"))
	_, err = New([]RuleSet{rules})
	assert.ErrorContains(t, err, "no blocks")
}

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) ObserveResult(res *Result, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, res.Filename)
}

func TestExtractAllKeepsOrder(t *testing.T) {
	obs := &recorder{}
	e := newExtractor(t, WithObserver(obs), WithSecurities(securities.NewCache()))

	var docs []*parser.Document
	for i := 0; i < 20; i++ {
		amount := fmt.Sprintf("%d,00", i+1)
		docs = append(docs, parser.NewDocument(fmt.Sprintf("doc%02d.pdf", i), buyNote("US1234567890", "ACME CORP", "1", amount)))
	}
	docs = append(docs, parser.NewDocument("junk.pdf", "nothing here"))

	results, err := e.ExtractAll(context.Background(), docs, 4)
	require.NoError(t, err)
	require.Len(t, results, len(docs))

	for i := 0; i < 20; i++ {
		assert.Equal(t, docs[i].Filename, results[i].Filename)
		require.Len(t, results[i].Items, 1)
		buy, _ := results[i].Items[0].Trade()
		assert.Equal(t, int64(i+1)*100, buy.Amount.Amount)
	}
	assert.True(t, results[20].Has(DocumentUnrecognized))
	assert.Len(t, obs.names, len(docs))
}

func TestExtractAllCancelled(t *testing.T) {
	e := newExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractAll(ctx, []*parser.Document{parser.NewDocument("a.pdf", "ISIN")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: LayoutMismatch, Bank: "HSBC", Filename: "a.pdf", Line: 12, Reason: "no amount"}
	assert.Equal(t, "a.pdf:12: HSBC: LayoutMismatch: no amount", err.Error())

	err = &Error{Kind: DocumentUnrecognized, Filename: "b.pdf", Reason: "unknown"}
	assert.Equal(t, "b.pdf: DocumentUnrecognized: unknown", err.Error())
}
