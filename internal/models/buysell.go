package models

import "time"

// EntryType is the direction of a trade.
type EntryType string

const (
	Buy  EntryType = "BUY"
	Sell EntryType = "SELL"
)

// BuySellEntry is a securities trade.
type BuySellEntry struct {
	UnitSet

	Type     EntryType `json:"type"`
	Date     time.Time `json:"date"`
	Security *Security `json:"security,omitempty"`
	Shares   int64     `json:"shares"`
	Amount   Money     `json:"amount"`
	Note     string    `json:"note,omitempty"`
}

// NewBuySellEntry returns an empty trade.
func NewBuySellEntry() *BuySellEntry {
	return &BuySellEntry{}
}

func (e *BuySellEntry) Money() Money { return e.Amount }

// GrossValue is the trade value before fees and taxes: buys subtract them
// from the amount paid, sells add them to the amount received.
func (e *BuySellEntry) GrossValue() Money {
	gross := e.Amount
	costs := e.Sum(UnitFee, gross.Currency).Amount + e.Sum(UnitTax, gross.Currency).Amount
	if e.Type == Sell {
		gross.Amount += costs
	} else {
		gross.Amount -= costs
	}
	return gross
}
