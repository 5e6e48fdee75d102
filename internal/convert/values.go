package convert

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ConversionError reports a value that could not be read in a locale.
type ConversionError struct {
	Kind   string
	Input  string
	Locale string
	Err    error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot read %q as %s (%s)", e.Input, e.Kind, e.Locale)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (l Locale) fail(kind, input string, err error) error {
	return &ConversionError{Kind: kind, Input: input, Locale: l.Name(), Err: err}
}

// Decimal reads a signed decimal number. Currency symbols, letters and
// whitespace other than grouping separators are ignored. A minus sign may
// lead or trail the number.
func (l Locale) Decimal(s string) (decimal.Decimal, error) {
	var b strings.Builder
	negative := false
	digits := 0
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == l.DecimalSep:
			b.WriteByte('.')
		case l.isGrouping(r):
		case r == '-' || r == '−':
			negative = true
		}
	}
	if digits == 0 {
		return decimal.Zero, l.fail("number", s, nil)
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, l.fail("number", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func (l Locale) scaled(kind, s string, decimals int32) (int64, error) {
	d, err := l.Decimal(s)
	if err != nil {
		return 0, l.fail(kind, s, nil)
	}
	return d.Shift(decimals).Round(0).IntPart(), nil
}

// Amount reads a monetary amount as an absolute value in hundredths.
func (l Locale) Amount(s string) (int64, error) {
	v, err := l.scaled("amount", s, AmountDecimals)
	if v < 0 {
		v = -v
	}
	return v, err
}

// SignedAmount is Amount but keeps the sign.
func (l Locale) SignedAmount(s string) (int64, error) {
	return l.scaled("amount", s, AmountDecimals)
}

// Shares reads a share quantity scaled by SharesFactor.
func (l Locale) Shares(s string) (int64, error) {
	v, err := l.scaled("shares", s, SharesDecimals)
	if v < 0 {
		v = -v
	}
	return v, err
}

// ExchangeRate reads a positive exchange rate with full precision.
func (l Locale) ExchangeRate(s string) (decimal.Decimal, error) {
	d, err := l.Decimal(s)
	if err != nil {
		return decimal.Zero, l.fail("exchange rate", s, nil)
	}
	if !d.IsPositive() {
		return decimal.Zero, l.fail("exchange rate", s, fmt.Errorf("rate must be positive"))
	}
	return d, nil
}

var wordPattern = regexp.MustCompile(`\p{L}+\.?`)

// normalizeMonths replaces localized month names with the English
// abbreviations understood by time.Parse.
func (l Locale) normalizeMonths(s string) string {
	return wordPattern.ReplaceAllStringFunc(s, func(w string) string {
		key := strings.ToLower(strings.TrimSuffix(w, "."))
		if m, ok := l.Months[key]; ok {
			return m.String()[:3]
		}
		return w
	})
}

// Date reads a calendar date using the locale's layouts.
func (l Locale) Date(s string) (time.Time, error) {
	in := strings.Join(strings.FieldsFunc(l.normalizeMonths(s), unicode.IsSpace), " ")
	for _, layout := range l.Layouts {
		if t, err := time.Parse(layout, in); err == nil {
			return t, nil
		}
	}
	return time.Time{}, l.fail("date", s, nil)
}

var clockLayouts = []string{"15:04:05", "15:04", "15.04.05", "15.04"}

// DateTime reads a date plus a time of day such as "09:31" or "09.31.12".
// An empty clock yields midnight.
func (l Locale) DateTime(date, clock string) (time.Time, error) {
	d, err := l.Date(date)
	if err != nil {
		return time.Time{}, err
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return d, nil
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return d.Add(time.Duration(c.Hour())*time.Hour +
				time.Duration(c.Minute())*time.Minute +
				time.Duration(c.Second())*time.Second), nil
		}
	}
	return time.Time{}, l.fail("time", clock, nil)
}

// FormatAmount renders a value in hundredths the way the locale prints it.
func (l Locale) FormatAmount(v int64) string {
	return l.format(decimal.New(v, -AmountDecimals), AmountDecimals)
}

// FormatShares renders a share quantity, dropping trailing zeros.
func (l Locale) FormatShares(v int64) string {
	d := decimal.New(v, -SharesDecimals)
	places := int32(0)
	if _, frac, ok := strings.Cut(d.String(), "."); ok {
		places = int32(len(frac))
	}
	return l.format(d, places)
}

func (l Locale) format(d decimal.Decimal, places int32) string {
	s := d.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 && len(l.Grouping) > 0 {
			b.WriteRune(l.Grouping[0])
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteRune(l.DecimalSep)
		b.WriteString(frac)
	}
	return b.String()
}
