package reconcile

import (
	"fmt"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// AddTax attaches a tax. Amounts in a currency other than the subject's
// are converted at rate, which is then required.
func AddTax(s models.Subject, m models.Money, rate *models.ExchangeRate) error {
	return addUnit(s, models.UnitTax, m, rate, "")
}

// AddFee attaches a fee the same way as AddTax.
func AddFee(s models.Subject, m models.Money, rate *models.ExchangeRate) error {
	return addUnit(s, models.UnitFee, m, rate, "")
}

// AddLabeledTax is AddTax remembering which statement line the tax came from.
func AddLabeledTax(s models.Subject, m models.Money, rate *models.ExchangeRate, label string) error {
	return addUnit(s, models.UnitTax, m, rate, label)
}

func addUnit(s models.Subject, t models.UnitType, m models.Money, rate *models.ExchangeRate, label string) error {
	if m.IsZero() {
		return nil
	}
	home := s.Money().Currency
	if home == "" || m.Currency == home {
		s.AddUnit(models.Unit{Type: t, Amount: m, Label: label})
		return nil
	}
	if rate == nil {
		return fmt.Errorf("%s of %s needs an exchange rate to %s", t, m, home)
	}
	converted, err := rate.Convert(m)
	if err != nil {
		return err
	}
	if converted.Currency != home {
		return fmt.Errorf("rate %s does not convert %s to %s", rate, m.Currency, home)
	}
	forex := m
	r := *rate
	s.AddUnit(models.Unit{Type: t, Amount: converted, Forex: &forex, Rate: &r, Label: label})
	return nil
}
