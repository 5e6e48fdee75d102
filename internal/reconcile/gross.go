// Package reconcile attaches gross values, taxes and fees to transactions
// and checks that the stated amounts add up.
package reconcile

import (
	"fmt"

	"github.com/insightdelivered/statement-extractor/internal/models"
)

// Policy decides how far stated and converted amounts may drift apart.
type Policy struct {
	// Tolerance is the largest accepted difference in hundredths.
	Tolerance int64
}

// DefaultPolicy accepts one hundredth of difference, the rounding error of
// a single conversion.
var DefaultPolicy = Policy{Tolerance: 1}

// Outcome tells what AttachGross did.
type Outcome int

const (
	// NoUnit: both amounts share a currency, nothing to attach.
	NoUnit Outcome = iota
	// Attached: the stated amounts agree under the rate.
	Attached
	// Recomputed: the foreign amount was replaced by home converted at
	// the rate.
	Recomputed
)

func (o Outcome) String() string {
	switch o {
	case Attached:
		return "attached"
	case Recomputed:
		return "recomputed"
	default:
		return "none"
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// tolerance is p.Tolerance widened to the rounding step of foreign. When one
// hundredth of foreign is worth several home hundredths, no foreign amount
// converts back closer than half of that step.
func (p Policy) tolerance(rate models.ExchangeRate, foreign string) int64 {
	step, err := rate.Convert(models.NewMoney(foreign, 1))
	if err != nil {
		return p.Tolerance
	}
	return max(p.Tolerance, step.Amount/2+1)
}

// AttachGross records the gross value of s in its home currency together
// with the foreign amount the statement quoted. When the two disagree
// beyond the tolerance the home amount is kept and the foreign amount is
// recomputed from it, because the home amount is what was settled.
func (p Policy) AttachGross(s models.Subject, home, foreign models.Money, rate models.ExchangeRate) (Outcome, error) {
	if home.Currency == foreign.Currency {
		return NoUnit, nil
	}
	if !rate.Covers(home.Currency, foreign.Currency) {
		return NoUnit, fmt.Errorf("rate %s does not convert %s to %s", rate, foreign.Currency, home.Currency)
	}

	implied, err := rate.Convert(foreign)
	if err != nil {
		return NoUnit, err
	}

	outcome := Attached
	if abs(implied.Amount-home.Amount) > p.tolerance(rate, foreign.Currency) {
		if foreign, err = rate.Convert(home); err != nil {
			return NoUnit, err
		}
		outcome = Recomputed
	}

	r := rate
	s.RemoveType(models.UnitGrossValue)
	s.AddUnit(models.Unit{
		Type:   models.UnitGrossValue,
		Amount: home,
		Forex:  &foreign,
		Rate:   &r,
	})
	return outcome, nil
}

// FixGross realigns an attached gross value with the gross derived from the
// subject's net amount and units, for statements that print a rounded or
// pre-fee gross. The foreign side is recomputed at the stored rate.
func (p Policy) FixGross(s models.Subject) (bool, error) {
	unit, ok := s.Unit(models.UnitGrossValue)
	if !ok || unit.Rate == nil {
		return false, nil
	}
	derived := s.GrossValue()
	if derived.Currency != unit.Amount.Currency || abs(derived.Amount-unit.Amount.Amount) <= p.Tolerance {
		return false, nil
	}
	forex, err := unit.Rate.Convert(derived)
	if err != nil {
		return false, err
	}
	s.RemoveType(models.UnitGrossValue)
	s.AddUnit(models.Unit{
		Type:   models.UnitGrossValue,
		Amount: derived,
		Forex:  &forex,
		Rate:   unit.Rate,
	})
	return true, nil
}
