package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Item is one extracted economic event together with its provenance.
type Item struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Subject      Subject `json:"subject"`
	Filename     string  `json:"filename"`
	Bank         string  `json:"bank,omitempty"`
	DocumentType string  `json:"documentType,omitempty"`
	// Line is the 1-based first line of the block the item came from.
	Line    int    `json:"line"`
	Failure string `json:"failure,omitempty"`
}

// NewBuySellItem wraps a trade.
func NewBuySellItem(e *BuySellEntry) *Item {
	return &Item{Kind: string(e.Type), Subject: e}
}

// NewTransactionItem wraps an account transaction.
func NewTransactionItem(t *AccountTransaction) *Item {
	return &Item{Kind: string(t.Type), Subject: t}
}

// itemNamespace scopes item identifiers to this application.
var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://insightdelivered.com/statement-extractor/items"))

// Stamp records provenance and derives a stable identifier from it, so that
// extracting the same document twice yields the same IDs.
func (i *Item) Stamp(filename, bank, documentType string, line, seq int) {
	i.Filename = filename
	i.Bank = bank
	i.DocumentType = documentType
	i.Line = line
	key := fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%d", filename, bank, documentType, line, seq)
	i.ID = uuid.NewSHA1(itemNamespace, []byte(key)).String()
}

// Trade returns the subject as a trade, if it is one.
func (i *Item) Trade() (*BuySellEntry, bool) {
	e, ok := i.Subject.(*BuySellEntry)
	return e, ok
}

// Transaction returns the subject as an account transaction, if it is one.
func (i *Item) Transaction() (*AccountTransaction, bool) {
	t, ok := i.Subject.(*AccountTransaction)
	return t, ok
}
