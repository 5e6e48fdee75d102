package reconcile

import "github.com/insightdelivered/statement-extractor/internal/models"

// Withholding tax appears twice on some dividend notes: once as tax paid
// and once as the part creditable at home. Only one may become a unit.
const (
	FlagWithholding  = "withholding.recorded"
	LabelWithholding = "withholding"
	LabelCreditable  = "withholding.creditable"
)

// Flags is per-transaction scratch state.
type Flags interface {
	Flag(key string) bool
	SetFlag(key string, v bool)
}

// RecordWithholding records tax withheld at source. It replaces a creditable
// withholding recorded earlier for the same transaction.
func RecordWithholding(f Flags, s models.Subject, m models.Money, rate *models.ExchangeRate) error {
	s.RemoveUnits(LabelCreditable)
	if err := AddLabeledTax(s, m, rate, LabelWithholding); err != nil {
		return err
	}
	f.SetFlag(FlagWithholding, true)
	return nil
}

// RecordCreditableWithholding records the creditable withholding only while
// no outright withholding was recorded.
func RecordCreditableWithholding(f Flags, s models.Subject, m models.Money, rate *models.ExchangeRate) error {
	if f.Flag(FlagWithholding) {
		return nil
	}
	return AddLabeledTax(s, m, rate, LabelCreditable)
}
