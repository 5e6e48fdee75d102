package models

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// AmountDecimals is the fixed number of decimal places every Money amount
// carries, independent of the currency's own fraction.
const AmountDecimals = 2

// Money is an amount in hundredths of a currency unit.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// NewMoney returns a Money value.
func NewMoney(currency string, amount int64) Money {
	return Money{Currency: currency, Amount: amount}
}

func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) Neg() Money { return Money{Currency: m.Currency, Amount: -m.Amount} }

// Add sums two amounts of the same currency.
func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s and %s", m.Currency, o.Currency)
	}
	return Money{Currency: m.Currency, Amount: m.Amount + o.Amount}, nil
}

// Sub subtracts o from m.
func (m Money) Sub(o Money) (Money, error) {
	return m.Add(o.Neg())
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -AmountDecimals)
}

// Known reports whether the currency code is in the ISO 4217 table.
func (m Money) Known() bool {
	return money.GetCurrency(m.Currency) != nil
}

// Display formats the amount with the currency's symbol and fraction,
// e.g. "€250.00" or "¥1,500".
func (m Money) Display() string {
	c := money.GetCurrency(m.Currency)
	if c == nil {
		return m.String()
	}
	minor := m.Decimal().Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, c.Code).Display()
}

func (m Money) String() string {
	return m.Currency + " " + m.Decimal().StringFixed(AmountDecimals)
}

// ExchangeRate converts between two currencies: one unit of Base equals
// Rate units of Term.
type ExchangeRate struct {
	Base string          `json:"base"`
	Term string          `json:"term"`
	Rate decimal.Decimal `json:"rate"`
}

// NewExchangeRate returns base/term at the given rate.
func NewExchangeRate(base, term string, rate decimal.Decimal) ExchangeRate {
	return ExchangeRate{Base: base, Term: term, Rate: rate}
}

// Inverse returns the term/base rate.
func (r ExchangeRate) Inverse() ExchangeRate {
	return ExchangeRate{Base: r.Term, Term: r.Base, Rate: decimal.NewFromInt(1).DivRound(r.Rate, 16)}
}

// Covers reports whether the rate converts between the two currencies.
func (r ExchangeRate) Covers(a, b string) bool {
	return (r.Base == a && r.Term == b) || (r.Base == b && r.Term == a)
}

// Convert converts m into the other currency of the pair, rounding half
// to even on the last decimal place.
func (r ExchangeRate) Convert(m Money) (Money, error) {
	if !r.Rate.IsPositive() {
		return Money{}, fmt.Errorf("exchange rate %s/%s is not positive", r.Base, r.Term)
	}
	switch m.Currency {
	case r.Base:
		v := decimal.NewFromInt(m.Amount).Mul(r.Rate).RoundBank(0)
		return Money{Currency: r.Term, Amount: v.IntPart()}, nil
	case r.Term:
		v := decimal.NewFromInt(m.Amount).DivRound(r.Rate, 16).RoundBank(0)
		return Money{Currency: r.Base, Amount: v.IntPart()}, nil
	default:
		return Money{}, fmt.Errorf("cannot convert %s with %s/%s", m.Currency, r.Base, r.Term)
	}
}

func (r ExchangeRate) String() string {
	return fmt.Sprintf("%s/%s %s", r.Base, r.Term, r.Rate.String())
}
