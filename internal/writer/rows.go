// Package writer renders extraction results as CSV, XLSX or JSON.
package writer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/models"
)

// Row is the flat rendering of one item shared by the tabular writers.
// Amounts are plain decimals with a dot separator.
type Row struct {
	ID       string `csv:"id"`
	File     string `csv:"file"`
	Bank     string `csv:"bank"`
	Type     string `csv:"type"`
	Date     string `csv:"date"`
	Security string `csv:"security"`
	ISIN     string `csv:"isin"`
	Shares   string `csv:"shares"`
	Amount   string `csv:"amount"`
	Currency string `csv:"currency"`
	Taxes    string `csv:"taxes"`
	Fees     string `csv:"fees"`
	Gross    string `csv:"gross"`
	Forex    string `csv:"forex"`
	Rate     string `csv:"rate"`
	Account  string `csv:"account"`
	Note     string `csv:"note"`
	Failure  string `csv:"failure"`
}

// Header lists the column names in Row order.
var Header = []string{
	"id", "file", "bank", "type", "date", "security", "isin", "shares",
	"amount", "currency", "taxes", "fees", "gross", "forex", "rate", "account", "note", "failure",
}

func (r Row) values() []string {
	return []string{
		r.ID, r.File, r.Bank, r.Type, r.Date, r.Security, r.ISIN, r.Shares,
		r.Amount, r.Currency, r.Taxes, r.Fees, r.Gross, r.Forex, r.Rate, r.Account, r.Note, r.Failure,
	}
}

// Rows flattens the items of all results, keeping their order.
func Rows(results []*extract.Result) []Row {
	var rows []Row
	for _, res := range results {
		for _, item := range res.Items {
			rows = append(rows, NewRow(item))
		}
	}
	return rows
}

// Errors collects the errors of all results.
func Errors(results []*extract.Result) []*extract.Error {
	var errs []*extract.Error
	for _, res := range results {
		errs = append(errs, res.Errors...)
	}
	return errs
}

// NewRow renders one item.
func NewRow(item *models.Item) Row {
	row := Row{
		ID:      item.ID,
		File:    item.Filename,
		Bank:    item.Bank,
		Type:    item.Kind,
		Failure: item.Failure,
	}

	var (
		date     time.Time
		security *models.Security
		shares   int64
		note     string
	)
	switch s := item.Subject.(type) {
	case *models.BuySellEntry:
		date, security, shares, note = s.Date, s.Security, s.Shares, s.Note
	case *models.AccountTransaction:
		date, security, shares, note = s.Date, s.Security, s.Shares, s.Note
		row.Account = s.Account
	}

	row.Date = formatDate(date)
	if security != nil {
		row.Security = security.Name
		row.ISIN = security.ISIN
	}
	if shares != 0 {
		row.Shares = decimal.New(shares, -convert.SharesDecimals).String()
	}
	row.Note = note

	amount := item.Subject.Money()
	row.Amount = formatMoney(amount)
	row.Currency = amount.Currency
	if taxes := item.Subject.Sum(models.UnitTax, amount.Currency); !taxes.IsZero() {
		row.Taxes = formatMoney(taxes)
	}
	if fees := item.Subject.Sum(models.UnitFee, amount.Currency); !fees.IsZero() {
		row.Fees = formatMoney(fees)
	}
	if gross := item.Subject.GrossValue(); gross != amount {
		row.Gross = formatMoney(gross)
	}
	if u, ok := item.Subject.Unit(models.UnitGrossValue); ok && u.Forex != nil {
		row.Forex = u.Forex.String()
		if u.Rate != nil {
			row.Rate = u.Rate.String()
		}
	}
	return row
}

func formatMoney(m models.Money) string {
	return m.Decimal().StringFixed(models.AmountDecimals)
}

// formatDate keeps the time of day only when the statement gave one.
func formatDate(t time.Time) string {
	switch {
	case t.IsZero():
		return ""
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
		return t.Format(time.DateOnly)
	default:
		return t.Format("2006-01-02T15:04")
	}
}
