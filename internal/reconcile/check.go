package reconcile

import (
	"fmt"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// CheckBuy verifies price times quantity against the net amount of a trade:
// buys pay gross plus costs, sells receive gross minus costs.
func (p Policy) CheckBuy(e *models.BuySellEntry, gross models.Money) error {
	if gross.Currency != e.Amount.Currency {
		return fmt.Errorf("gross %s is not in trade currency %s", gross, e.Amount.Currency)
	}
	costs := e.Sum(models.UnitFee, gross.Currency).Amount + e.Sum(models.UnitTax, gross.Currency).Amount
	want := gross.Amount + costs
	if e.Type == models.Sell {
		want = gross.Amount - costs
	}
	if abs(want-e.Amount.Amount) > p.Tolerance {
		return fmt.Errorf("%s: net %s does not match gross %s and costs %s",
			e.Type, e.Amount, gross, models.NewMoney(gross.Currency, costs))
	}
	return nil
}

// CheckDividend verifies net = gross - taxes - fees for income.
func (p Policy) CheckDividend(t *models.AccountTransaction, gross models.Money) error {
	if gross.Currency != t.Amount.Currency {
		return fmt.Errorf("gross %s is not in payout currency %s", gross, t.Amount.Currency)
	}
	deductions := t.Sum(models.UnitTax, gross.Currency).Amount + t.Sum(models.UnitFee, gross.Currency).Amount
	if abs(gross.Amount-deductions-t.Amount.Amount) > p.Tolerance {
		return fmt.Errorf("%s: net %s does not match gross %s less %s",
			t.Type, t.Amount, gross, models.NewMoney(gross.Currency, deductions))
	}
	return nil
}

// CheckForex verifies that the foreign amount of a unit converts back to
// its home amount, within the rounding step of the foreign currency.
func (p Policy) CheckForex(u models.Unit) error {
	if u.Forex == nil || u.Rate == nil {
		return nil
	}
	back, err := u.Rate.Convert(*u.Forex)
	if err != nil {
		return err
	}
	if back.Currency != u.Amount.Currency || abs(back.Amount-u.Amount.Amount) > p.tolerance(*u.Rate, u.Forex.Currency) {
		return fmt.Errorf("%s: %s at %s gives %s, expected %s", u.Type, *u.Forex, u.Rate, back, u.Amount)
	}
	return nil
}

// Verify runs every check that applies to the subject of item.
func (p Policy) Verify(item *models.Item) []error {
	var errs []error
	for _, u := range item.Subject.Units() {
		if err := p.CheckForex(u); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
