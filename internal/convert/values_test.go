package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name   string
		locale Locale
		input  string
		want   int64
	}{
		{"german grouping", German, "1.234,56", 123456},
		{"german with currency", German, "250,00 EUR", 25000},
		{"german negative is absolute", German, "-12,30", 1230},
		{"swiss apostrophe", Swiss, "1'234.50", 123450},
		{"swiss typographic apostrophe", Swiss, "12’000.05", 1200005},
		{"english pound", English, "£1,234.56", 123456},
		{"english no fraction", English, "2,500", 250000},
		{"french spaces", French, "1 234,56", 123456},
		{"french nbsp", French, "1\u00a0234,56", 123456},
		{"rounds half away from zero", German, "0,005", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.locale.Amount(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignedAmount(t *testing.T) {
	got, err := German.SignedAmount("12,30-")
	require.NoError(t, err)
	assert.Equal(t, int64(-1230), got)

	got, err = English.SignedAmount("-45.00")
	require.NoError(t, err)
	assert.Equal(t, int64(-4500), got)
}

func TestAmountRejectsText(t *testing.T) {
	_, err := German.Amount("n/a")
	require.Error(t, err)

	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "amount", convErr.Kind)
	assert.Equal(t, "de-DE", convErr.Locale)
}

func TestShares(t *testing.T) {
	got, err := German.Shares("10")
	require.NoError(t, err)
	assert.Equal(t, 10*SharesFactor, got)

	got, err = German.Shares("0,123456")
	require.NoError(t, err)
	assert.Equal(t, int64(12_345_600), got)

	got, err = Swiss.Shares("1'500")
	require.NoError(t, err)
	assert.Equal(t, 1500*SharesFactor, got)
}

func TestExchangeRate(t *testing.T) {
	got, err := German.ExchangeRate("1,08345")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1.08345")))

	_, err = German.ExchangeRate("0,00")
	require.Error(t, err)
}

func TestDate(t *testing.T) {
	tests := []struct {
		name   string
		locale Locale
		input  string
		want   time.Time
	}{
		{"german numeric", German, "15.01.2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"german short year", German, "01.03.24", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"german month name", German, "15. März 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"german abbreviation", German, "3 Okt 2023", time.Date(2023, 10, 3, 0, 0, 0, 0, time.UTC)},
		{"english text", English, "15 Jan 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"english long month", English, "4 December 2023", time.Date(2023, 12, 4, 0, 0, 0, 0, time.UTC)},
		{"english slash", English, "17/01/2024", time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)},
		{"english dash", English, "05-Feb-24", time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)},
		{"us slash", US, "01/17/2024", time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)},
		{"french abbreviation", French, "12 févr. 2024", time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.locale.Date(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDateTime(t *testing.T) {
	got, err := German.DateTime("15.01.2024", "09:31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 31, 0, 0, time.UTC), got)

	got, err = German.DateTime("15.01.2024", "17.05.02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 17, 5, 2, 0, time.UTC), got)

	_, err = German.DateTime("15.01.2024", "late")
	require.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	for _, l := range []Locale{German, Swiss, English, French} {
		for _, v := range []int64{0, 5, 123456, 100000000, 98765432101} {
			s := l.FormatAmount(v)
			got, err := l.Amount(s)
			require.NoError(t, err, "%s %q", l.Name(), s)
			assert.Equal(t, v, got, "%s %q", l.Name(), s)
		}
	}

	assert.Equal(t, "1.234,56", German.FormatAmount(123456))
	assert.Equal(t, "1'234.56", Swiss.FormatAmount(123456))
	assert.Equal(t, "10", German.FormatShares(10*SharesFactor))
	assert.Equal(t, "0,5", German.FormatShares(SharesFactor/2))
}

func TestParseLocale(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"de-DE", "de-DE"},
		{"de-CH", "de-CH"},
		{"de", "de-DE"},
		{"en", "en-GB"},
		{"en-US", "en-US"},
		{"fr-BE", "fr-FR"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, err := ParseLocale(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Name())
		})
	}

	_, err := ParseLocale("ja")
	assert.Error(t, err)
}
