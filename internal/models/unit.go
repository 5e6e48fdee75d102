package models

// UnitType classifies a monetary adjustment attached to a transaction.
type UnitType string

const (
	UnitTax        UnitType = "TAX"
	UnitFee        UnitType = "FEE"
	UnitGrossValue UnitType = "GROSS_VALUE"
)

// Unit is a typed adjustment. Forex and Rate are set when the source
// stated the value in a currency other than the transaction's.
type Unit struct {
	Type   UnitType      `json:"type"`
	Amount Money         `json:"amount"`
	Forex  *Money        `json:"forex,omitempty"`
	Rate   *ExchangeRate `json:"rate,omitempty"`
	// Label names the statement line the unit came from, e.g. "withholding".
	Label string `json:"label,omitempty"`
}

// UnitSet is the set of adjustments shared by all subjects.
type UnitSet struct {
	UnitList []Unit `json:"units,omitempty"`
}

// Units returns a copy of the attached units.
func (u *UnitSet) Units() []Unit {
	out := make([]Unit, len(u.UnitList))
	copy(out, u.UnitList)
	return out
}

func (u *UnitSet) AddUnit(unit Unit) {
	u.UnitList = append(u.UnitList, unit)
}

// RemoveUnits drops every unit with the given label and returns how many
// were removed.
func (u *UnitSet) RemoveUnits(label string) int {
	kept := u.UnitList[:0]
	removed := 0
	for _, unit := range u.UnitList {
		if unit.Label == label {
			removed++
			continue
		}
		kept = append(kept, unit)
	}
	u.UnitList = kept
	return removed
}

// RemoveType drops every unit of the given type.
func (u *UnitSet) RemoveType(t UnitType) {
	kept := u.UnitList[:0]
	for _, unit := range u.UnitList {
		if unit.Type != t {
			kept = append(kept, unit)
		}
	}
	u.UnitList = kept
}

// Unit returns the first unit of type t.
func (u *UnitSet) Unit(t UnitType) (Unit, bool) {
	for _, unit := range u.UnitList {
		if unit.Type == t {
			return unit, true
		}
	}
	return Unit{}, false
}

// Sum adds up the home-currency amounts of all units of type t.
func (u *UnitSet) Sum(t UnitType, currency string) Money {
	total := Money{Currency: currency}
	for _, unit := range u.UnitList {
		if unit.Type == t {
			total.Amount += unit.Amount.Amount
		}
	}
	return total
}

// Subject is a transaction under construction that can carry units.
type Subject interface {
	Units() []Unit
	AddUnit(Unit)
	RemoveUnits(label string) int
	RemoveType(UnitType)
	Unit(UnitType) (Unit, bool)
	Sum(t UnitType, currency string) Money
	// Money is the stated net settlement amount.
	Money() Money
	// GrossValue is the amount before taxes and fees, derived from Money
	// and the attached units.
	GrossValue() Money
}
