package banks

import (
	"fmt"
	"regexp"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
)

const (
	number   = `[\.,\d]+`
	currency = `[A-Z]{3}`

	isinLine   = `ISIN (?P<isin>[A-Z]{2}[A-Z0-9]{9}[0-9]) (?P<name>.+)`
	sharesLine = `(?:Shares|Stück) (?P<shares>` + number + `)`
	rateLine   = `(?:Exchange rate|Devisenkurs) (?P<baseCurrency>` + currency + `)/(?P<termCurrency>` + currency + `) (?P<rate>` + number + `)`
	amountLine = `(?:Amount|Betrag) (?P<amount>` + number + `) (?P<currency>` + currency + `)`
	dateLine   = `(?:Date|Datum) (?P<date>\d{2}\.\d{2}\.\d{4})(?: (?P<time>\d{2}:\d{2}(?::\d{2})?))?`

	feeLabels = `Provision|Commission|Börsengebühr|Exchange fee|Fremde Spesen`
	taxLabels = `Kapitalertragsteuer|Solidaritätszuschlag|Kirchensteuer|Finanztransaktionssteuer|Withholding surcharge`

	withholdingLabels = `Quellensteuer|Withholding tax`
	creditableLabels  = `Anrechenbare Quellensteuer|Creditable withholding tax`

	tradeCharges    = feeLabels + `|` + taxLabels
	dividendCharges = creditableLabels + `|` + withholdingLabels + `|` + tradeCharges
)

// Broker reads the contract notes of a German online broker: trades,
// dividend advices and tax corrections. Labels are printed in German or
// English, numbers always in German notation.
func Broker(policy reconcile.Policy) extract.RuleSet {
	trade := parser.NewDocumentType("Wertpapierabrechnung", "ISIN").Exclude("Storno")
	documentDate(trade)
	trade.AddBlock(parser.NewBlock(`(?:Kauf|Verkauf)`).
		EndsWith(`(?:Amount|Betrag) .*`).
		Set(brokerTrade(policy)))

	dividend := parser.NewDocumentType("Dividende", "Dividende", "ISIN").Exclude("Storno")
	documentDate(dividend)
	dividend.AddBlock(parser.NewBlock(`(?:Dividende|Dividend)`).
		EndsWith(`(?:Amount|Betrag) .*`).
		Set(brokerDividend(policy)))

	refund := parser.NewDocumentType("Steuerkorrektur", "Steuerkorrektur")
	documentDate(refund)
	refund.AddBlock(parser.NewBlock(`Steuerkorrektur`).
		EndsWith(`(?:Erstattung|Refund|Amount|Betrag) .*`).
		Set(brokerTaxRefund()))

	return extract.RuleSet{
		Name:          "broker",
		Label:         "Online Broker",
		Locale:        convert.German,
		DocumentTypes: []*parser.DocumentType{trade, dividend, refund},
	}
}

// documentDate exports the voucher date used by blocks that print none.
func documentDate(d *parser.DocumentType) {
	d.Section("documentDate",
		parser.Find(`Belegdatum .*`),
		parser.Match(`Belegdatum (?P<date>\d{2}\.\d{2}\.\d{4})`),
	).Optional()
}

// charges declares the fee and tax lines of a note. They are read by one
// repeated section so that any order of labels is kept; the label decides
// the unit.
func charges[T any](tx *parser.Transaction[T], labels string) {
	tx.Repeat(tx.NewSection("charge",
		parser.Find(`(?:`+labels+`) .*`),
		parser.Match(`(?P<chargeName>`+labels+`) (?P<charge>`+number+`) (?P<chargeCurrency>`+currency+`)`),
	).Assign(func(v *parser.Values, _ *parser.Context, _ T) error {
		m, err := v.Money("chargeCurrency", "charge")
		if err != nil {
			return err
		}
		unit, label := chargeKind(v.Get("chargeName"))
		noteCharge(v, charge{unit: unit, money: m, label: label})
		return nil
	}))
}

var (
	feeLabel         = regexp.MustCompile(`^(?:` + feeLabels + `)$`)
	withholdingLabel = regexp.MustCompile(`^(?:` + withholdingLabels + `)$`)
	creditableLabel  = regexp.MustCompile(`^(?:` + creditableLabels + `)$`)
)

func chargeKind(name string) (models.UnitType, string) {
	switch {
	case feeLabel.MatchString(name):
		return models.UnitFee, ""
	case creditableLabel.MatchString(name):
		return models.UnitTax, reconcile.LabelCreditable
	case withholdingLabel.MatchString(name):
		return models.UnitTax, reconcile.LabelWithholding
	default:
		return models.UnitTax, ""
	}
}

func brokerTrade(policy reconcile.Policy) *parser.Transaction[*models.BuySellEntry] {
	tx := parser.NewTransaction(models.NewBuySellEntry)

	tx.Section("type", parser.Match(`(?P<type>Kauf|Verkauf)`)).
		Assign(func(v *parser.Values, _ *parser.Context, e *models.BuySellEntry) error {
			e.Type = models.Buy
			if v.Get("type") == "Verkauf" {
				e.Type = models.Sell
			}
			return nil
		})

	tx.Section("security", parser.Match(isinLine)).
		Assign(resolveSecurity(func(e *models.BuySellEntry, s *models.Security) { e.Security = s }))

	tx.Section("shares", parser.Match(sharesLine)).
		Assign(func(v *parser.Values, _ *parser.Context, e *models.BuySellEntry) error {
			shares, err := v.Shares("shares")
			e.Shares = shares
			return err
		})

	tx.Section("date", parser.Find(`(?:Date|Datum) .*`), parser.Match(dateLine)).
		Assign(func(v *parser.Values, _ *parser.Context, e *models.BuySellEntry) error {
			date, err := v.DateTime("date", "time")
			e.Date = date
			return err
		}).Optional()

	tx.Section("gross",
		parser.Find(`(?:Gross|Kurswert) .*`),
		parser.Match(`(?:Gross|Kurswert) (?P<gross>`+number+`) (?P<grossCurrency>`+currency+`)`),
	).Assign(func(v *parser.Values, _ *parser.Context, _ *models.BuySellEntry) error {
		m, err := v.Money("grossCurrency", "gross")
		v.Tx().SetValue(keyGross, m)
		return err
	}).Optional()

	tx.Section("exchangeRate", parser.Find(`(?:Exchange rate|Devisenkurs) .*`), parser.Match(rateLine)).
		Assign(noteRate[*models.BuySellEntry]).Optional()

	charges(tx, tradeCharges)

	tx.Section("amount", parser.Find(`(?:Amount|Betrag) .*`), parser.Match(amountLine)).
		Assign(func(v *parser.Values, _ *parser.Context, e *models.BuySellEntry) error {
			m, err := v.Money("currency", "amount")
			if err != nil {
				return err
			}
			e.Amount = m
			if e.Date.IsZero() && v.Has("date") {
				if e.Date, err = v.Date("date"); err != nil {
					return err
				}
			}
			if err := settle(v, e); err != nil {
				return err
			}

			gross, ok := parser.ValueOf[models.Money](v.Tx(), keyGross)
			if !ok {
				return nil
			}
			if gross.Currency == m.Currency {
				return policy.CheckBuy(e, gross)
			}
			r := rate(v)
			if r == nil {
				return fmt.Errorf("gross %s without exchange rate", gross)
			}
			home, err := r.Convert(gross)
			if err != nil {
				return err
			}
			_, err = policy.AttachGross(e, home, gross, *r)
			return err
		})

	tx.Conclude(func(_ *parser.Context, e *models.BuySellEntry) error {
		_, err := policy.FixGross(e)
		return err
	})

	tx.Wrap(func(e *models.BuySellEntry) (*models.Item, error) {
		if e.Amount.IsZero() {
			return nil, nil
		}
		item := models.NewBuySellItem(e)
		if e.Shares == 0 {
			item.Failure = "no shares"
		}
		return item, nil
	})

	return tx
}

func brokerDividend(policy reconcile.Policy) *parser.Transaction[*models.AccountTransaction] {
	tx := parser.NewTransaction(models.NewAccountTransaction)

	tx.Section("type", parser.Match(`(?:Dividende|Dividend)`)).
		Assign(func(_ *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
			t.Type = models.Dividends
			return nil
		})

	tx.Section("security", parser.Match(isinLine)).
		Assign(resolveSecurity(func(t *models.AccountTransaction, s *models.Security) { t.Security = s }))

	tx.Section("shares", parser.Match(sharesLine)).
		Assign(func(v *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
			shares, err := v.Shares("shares")
			t.Shares = shares
			return err
		})

	tx.Section("payDate",
		parser.Find(`(?:Zahltag|Payment date) .*`),
		parser.Match(`(?:Zahltag|Payment date) (?P<payDate>\d{2}\.\d{2}\.\d{4})`),
	).Assign(func(v *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
		date, err := v.Date("payDate")
		t.Date = date
		return err
	}).Optional()

	tx.Section("exchangeRate", parser.Find(`(?:Exchange rate|Devisenkurs) .*`), parser.Match(rateLine)).
		Assign(noteRate[*models.AccountTransaction]).Optional()

	// gross is printed in the payout currency, the home currency or both
	tx.Repeat(tx.NewSection("gross",
		parser.Find(`(?:Gross|Brutto) .*`),
		parser.Match(`(?:Gross|Brutto) (?P<gross>`+number+`) (?P<grossCurrency>`+currency+`)`),
	).Assign(func(v *parser.Values, _ *parser.Context, _ *models.AccountTransaction) error {
		m, err := v.Money("grossCurrency", "gross")
		if err != nil {
			return err
		}
		list, _ := parser.ValueOf[[]models.Money](v.Tx(), keyGross)
		v.Tx().SetValue(keyGross, append(list, m))
		return nil
	}))

	charges(tx, dividendCharges)

	tx.Section("amount", parser.Find(`(?:Amount|Betrag) .*`), parser.Match(amountLine)).
		Assign(func(v *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
			m, err := v.Money("currency", "amount")
			if err != nil {
				return err
			}
			t.Amount = m
			if t.Date.IsZero() && v.Has("date") {
				if t.Date, err = v.Date("date"); err != nil {
					return err
				}
			}
			if err := settle(v, t); err != nil {
				return err
			}
			return dividendGross(policy, v, t)
		})

	tx.Wrap(func(t *models.AccountTransaction) (*models.Item, error) {
		if t.Amount.IsZero() {
			return nil, nil
		}
		return models.NewTransactionItem(t), nil
	})

	return tx
}

// dividendGross attaches the foreign gross and checks a stated home gross
// against net and deductions.
func dividendGross(policy reconcile.Policy, v *parser.Values, t *models.AccountTransaction) error {
	stated, _ := parser.ValueOf[[]models.Money](v.Tx(), keyGross)

	var home, foreign *models.Money
	for i := range stated {
		switch {
		case stated[i].Currency == t.Amount.Currency && home == nil:
			home = &stated[i]
		case stated[i].Currency != t.Amount.Currency && foreign == nil:
			foreign = &stated[i]
		}
	}

	if foreign != nil {
		r := rate(v)
		if r == nil {
			return fmt.Errorf("gross %s without exchange rate", *foreign)
		}
		attach := home
		if attach == nil {
			converted, err := r.Convert(*foreign)
			if err != nil {
				return err
			}
			attach = &converted
		}
		if _, err := policy.AttachGross(t, *attach, *foreign, *r); err != nil {
			return err
		}
	}

	if home == nil {
		return nil
	}
	return policy.CheckDividend(t, *home)
}

func brokerTaxRefund() *parser.Transaction[*models.AccountTransaction] {
	tx := parser.NewTransaction(models.NewAccountTransaction)

	own := tx.NewSection("refundSecurity", parser.Match(`Steuerkorrektur`), parser.Match(isinLine)).
		Assign(resolveSecurity(func(t *models.AccountTransaction, s *models.Security) { t.Security = s }))

	// without its own ISIN line the correction refers to the trade above it
	noted := tx.NewSection("notedSecurity", parser.Match(`Steuerkorrektur`), parser.ContextCopy(ctxISIN, ctxName)).
		Assign(func(v *parser.Values, ctx *parser.Context, t *models.AccountTransaction) error {
			if sec, ok := parser.ValueOf[*models.Security](ctx.Store, ctxSecurity); ok && sec.ISIN == v.Get(ctxISIN) {
				t.Security = sec
				return nil
			}
			sec, err := ctx.Security(models.SecurityAttributes{ISIN: v.Get(ctxISIN), Name: v.Get(ctxName)})
			t.Security = sec
			return err
		})

	tx.OneOf(own, noted)

	tx.Section("amount",
		parser.Find(`(?:Erstattung|Refund|Amount|Betrag) .*`),
		parser.Match(`(?:Erstattung|Refund|Amount|Betrag) (?P<amount>`+number+`) (?P<currency>`+currency+`)`),
	).Assign(func(v *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
		t.Type = models.TaxRefund
		m, err := v.Money("currency", "amount")
		if err != nil {
			return err
		}
		t.Amount = m
		if v.Has("date") {
			t.Date, err = v.Date("date")
		}
		return err
	})

	tx.Wrap(func(t *models.AccountTransaction) (*models.Item, error) {
		if t.Amount.IsZero() {
			return nil, nil
		}
		return models.NewTransactionItem(t), nil
	})

	return tx
}
