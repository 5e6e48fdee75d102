package banks

import (
	"fmt"

	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/reconcile"
)

// Per-occurrence scratch keys.
const (
	keyCharges = "charges"
	keyRate    = "rate"
	keyGross   = "gross"
)

// Context keys a trade leaves for later blocks of the same document.
const (
	ctxISIN     = "isin"
	ctxName     = "name"
	ctxSecurity = "security"
)

// charge is a tax or fee seen before the settlement currency is known.
type charge struct {
	unit  models.UnitType
	money models.Money
	label string
}

func noteCharge(v *parser.Values, c charge) {
	list, _ := parser.ValueOf[[]charge](v.Tx(), keyCharges)
	v.Tx().SetValue(keyCharges, append(list, c))
}

// rate returns the exchange rate stated in the current occurrence.
func rate(v *parser.Values) *models.ExchangeRate {
	r, ok := parser.ValueOf[models.ExchangeRate](v.Tx(), keyRate)
	if !ok {
		return nil
	}
	return &r
}

// settle attaches the noted charges to s in statement order. Withholding
// tax goes through the precedence rules.
func settle(v *parser.Values, s models.Subject) error {
	list, _ := parser.ValueOf[[]charge](v.Tx(), keyCharges)
	r := rate(v)
	for _, c := range list {
		var err error
		switch {
		case c.label == reconcile.LabelWithholding:
			err = reconcile.RecordWithholding(v.Tx(), s, c.money, r)
		case c.label == reconcile.LabelCreditable:
			err = reconcile.RecordCreditableWithholding(v.Tx(), s, c.money, r)
		case c.unit == models.UnitFee:
			err = reconcile.AddFee(s, c.money, r)
		default:
			err = reconcile.AddLabeledTax(s, c.money, r, c.label)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// noteRate stores a rate printed as "BASE/TERM rate".
func noteRate[T any](v *parser.Values, _ *parser.Context, _ T) error {
	r, err := v.Rate("rate")
	if err != nil {
		return err
	}
	base, term := v.Get("baseCurrency"), v.Get("termCurrency")
	if base == term {
		return fmt.Errorf("exchange rate %s/%s", base, term)
	}
	v.Tx().SetValue(keyRate, models.NewExchangeRate(base, term, r))
	return nil
}

// resolveSecurity returns an assign that resolves the captured isin and
// name and leaves the result in the context for later blocks.
func resolveSecurity[T any](set func(T, *models.Security)) parser.AssignFunc[T] {
	return func(v *parser.Values, ctx *parser.Context, subject T) error {
		sec, err := ctx.Security(models.SecurityAttributes{
			ISIN: v.Get("isin"),
			Name: v.Get("name"),
		})
		if err != nil {
			return err
		}
		set(subject, sec)
		ctx.Put(ctxISIN, sec.ISIN)
		ctx.Put(ctxName, sec.Name)
		ctx.SetValue(ctxSecurity, sec)
		return nil
	}
}
