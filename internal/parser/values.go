package parser

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/models"
)

// Values are the fields one section application produced, merged over the
// document's exported context entries.
type Values struct {
	fields map[string]string
	// Start and End delimit the lines the section consumed, [Start, End).
	Start, End int

	locale convert.Locale
	tx     *Store
}

func (v *Values) Get(key string) string { return v.fields[key] }

func (v *Values) Lookup(key string) (string, bool) {
	s, ok := v.fields[key]
	return s, ok
}

func (v *Values) Has(key string) bool {
	_, ok := v.fields[key]
	return ok
}

// Map returns a copy of all fields.
func (v *Values) Map() map[string]string {
	out := make(map[string]string, len(v.fields))
	for k, s := range v.fields {
		out[k] = s
	}
	return out
}

// Tx is scratch state scoped to the current transaction occurrence.
func (v *Values) Tx() *Store { return v.tx }

func (v *Values) Locale() convert.Locale { return v.locale }

func (v *Values) require(key string) (string, error) {
	s, ok := v.fields[key]
	if !ok {
		return "", fmt.Errorf("no %s found", key)
	}
	return s, nil
}

// Amount converts the field to hundredths using the rule set's locale.
func (v *Values) Amount(key string) (int64, error) {
	s, err := v.require(key)
	if err != nil {
		return 0, err
	}
	return v.locale.Amount(s)
}

func (v *Values) Shares(key string) (int64, error) {
	s, err := v.require(key)
	if err != nil {
		return 0, err
	}
	return v.locale.Shares(s)
}

func (v *Values) Rate(key string) (decimal.Decimal, error) {
	s, err := v.require(key)
	if err != nil {
		return decimal.Zero, err
	}
	return v.locale.ExchangeRate(s)
}

func (v *Values) Date(key string) (time.Time, error) {
	s, err := v.require(key)
	if err != nil {
		return time.Time{}, err
	}
	return v.locale.Date(s)
}

// DateTime combines a date field with an optional time field.
func (v *Values) DateTime(dateKey, timeKey string) (time.Time, error) {
	s, err := v.require(dateKey)
	if err != nil {
		return time.Time{}, err
	}
	return v.locale.DateTime(s, v.fields[timeKey])
}

// Money reads an amount and its currency code.
func (v *Values) Money(currencyKey, amountKey string) (models.Money, error) {
	currency, err := v.require(currencyKey)
	if err != nil {
		return models.Money{}, err
	}
	amount, err := v.Amount(amountKey)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoney(currency, amount), nil
}
