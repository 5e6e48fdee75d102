package models

import "time"

// TransactionType is the kind of an account transaction.
type TransactionType string

const (
	Deposit        TransactionType = "DEPOSIT"
	Removal        TransactionType = "REMOVAL"
	Interest       TransactionType = "INTEREST"
	InterestCharge TransactionType = "INTEREST_CHARGE"
	Dividends      TransactionType = "DIVIDENDS"
	Fees           TransactionType = "FEES"
	FeesRefund     TransactionType = "FEES_REFUND"
	Taxes          TransactionType = "TAXES"
	TaxRefund      TransactionType = "TAX_REFUND"
	TransferIn     TransactionType = "TRANSFER_IN"
	TransferOut    TransactionType = "TRANSFER_OUT"
)

// AccountTransaction is a cash movement on an account, optionally tied to
// a security (dividends, tax refunds).
type AccountTransaction struct {
	UnitSet

	Type     TransactionType `json:"type"`
	Date     time.Time       `json:"date"`
	Amount   Money           `json:"amount"`
	Security *Security       `json:"security,omitempty"`
	Shares   int64           `json:"shares,omitempty"`
	Note     string          `json:"note,omitempty"`
	// Account identifies the statement account, e.g. "40-12-34 87654321".
	Account string `json:"account,omitempty"`
	// Balance is the running account balance when the statement prints one.
	Balance *Money `json:"balance,omitempty"`
}

// NewAccountTransaction returns an empty transaction; the type is usually
// set by the first section that matches.
func NewAccountTransaction() *AccountTransaction {
	return &AccountTransaction{}
}

func (t *AccountTransaction) Money() Money { return t.Amount }

// GrossValue adds taxes and fees back onto income; other types are gross
// already.
func (t *AccountTransaction) GrossValue() Money {
	switch t.Type {
	case Dividends, Interest:
		gross := t.Amount
		gross.Amount += t.Sum(UnitTax, gross.Currency).Amount + t.Sum(UnitFee, gross.Currency).Amount
		return gross
	default:
		return t.Amount
	}
}

// IsCredit reports whether the transaction increases the account balance.
func (t *AccountTransaction) IsCredit() bool {
	switch t.Type {
	case Deposit, Interest, Dividends, FeesRefund, TaxRefund, TransferIn:
		return true
	}
	return false
}
