package banks

import (
	"strings"

	"github.com/insightdelivered/statement-extractor/internal/convert"
	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
)

const (
	slashDate = `\d{1,2}/\d{1,2}/\d{2,4}`
	textDate  = `\d{1,2} [A-Z][a-z]{2,8} \d{2,4}`
	dashDate  = `\d{1,2}-[A-Z][a-z]{2,8}-\d{2,4}`

	sterling   = `£?(?:[\d,]+\.\d{2})`
	keyBalance = "balance"
)

// statement describes the current-account statement of a UK bank: one
// line per transaction with date, description, amount and running
// balance, descriptions possibly wrapped onto following lines.
type statement struct {
	name        string
	label       string
	identifiers []string
	date        string
}

func (s statement) ruleSet() extract.RuleSet {
	dt := parser.NewDocumentType("Statement", "Balance")

	// document sections share one cursor, so they follow the page order
	dt.Section("sortCode",
		parser.Find(`.*Sort code.*`),
		parser.Match(`.*Sort code:? *(?P<sortCode>\d{2}-\d{2}-\d{2}).*`),
	).Optional()
	dt.Section("accountNumber",
		parser.Find(`.*Account number.*`),
		parser.Match(`.*Account number:? *(?P<accountNumber>\d{8}).*`),
	).Optional()
	dt.Section("openingBalance",
		parser.Find(`(?i:opening balance|balance brought forward|start balance|brought forward).*`),
		parser.Match(`(?i:opening balance|balance brought forward|start balance|brought forward) +(?P<openingBalance>`+sterling+`).*`),
	).Optional()

	dt.AddBlock(parser.NewBlock(`(?:` + s.date + `) +.*`).Set(s.transaction()))

	return extract.RuleSet{
		Name:          s.name,
		Label:         s.label,
		Identifiers:   s.identifiers,
		Locale:        convert.English,
		DocumentTypes: []*parser.DocumentType{dt},
	}
}

func (s statement) transaction() *parser.Transaction[*models.AccountTransaction] {
	tx := parser.NewTransaction(models.NewAccountTransaction)
	head := `(?P<date>` + s.date + `) +(?P<description>.+?)`

	withBalance := tx.NewSection("lineWithBalance",
		parser.Match(head+` +(?P<amount>`+sterling+`) +(?P<balance>`+sterling+`) *`),
	).Assign(func(v *parser.Values, ctx *parser.Context, t *models.AccountTransaction) error {
		if err := readLine(v, t); err != nil {
			return err
		}
		balance, err := v.Amount("balance")
		if err != nil {
			return err
		}
		t.Balance = &models.Money{Currency: t.Amount.Currency, Amount: balance}

		previous, ok := previousBalance(v, ctx)
		t.Type = classify(t.Amount.Amount, balance, previous, ok, t.Note)
		ctx.SetValue(keyBalance, balance)
		return nil
	})

	withoutBalance := tx.NewSection("line",
		parser.Match(head+` +(?P<amount>`+sterling+`) *`),
	).Assign(func(v *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
		if err := readLine(v, t); err != nil {
			return err
		}
		t.Type = classify(t.Amount.Amount, 0, 0, false, t.Note)
		return nil
	})

	tx.OneOf(withBalance, withoutBalance)

	tx.Repeat(tx.NewSection("continuation", parser.Match(`(?P<continuation>[^\d\s].*)`)).
		Assign(func(v *parser.Values, _ *parser.Context, t *models.AccountTransaction) error {
			line := strings.TrimSpace(v.Get("continuation"))
			if !isSummaryLine(line) {
				t.Note += " " + line
			}
			return nil
		}))

	tx.Wrap(func(t *models.AccountTransaction) (*models.Item, error) {
		if t.Amount.IsZero() {
			return nil, nil
		}
		return models.NewTransactionItem(t), nil
	})

	return tx
}

func readLine(v *parser.Values, t *models.AccountTransaction) error {
	date, err := v.Date("date")
	if err != nil {
		return err
	}
	amount, err := v.Amount("amount")
	if err != nil {
		return err
	}
	t.Date = date
	t.Amount = models.NewMoney("GBP", amount)
	t.Note = strings.Join(strings.Fields(v.Get("description")), " ")
	t.Account = strings.TrimSpace(v.Get("sortCode") + " " + v.Get("accountNumber"))
	return nil
}

// previousBalance is the balance after the last transaction, or the
// opening balance for the first one.
func previousBalance(v *parser.Values, ctx *parser.Context) (int64, bool) {
	if b, ok := parser.ValueOf[int64](ctx.Store, keyBalance); ok {
		return b, true
	}
	if v.Has("openingBalance") {
		if b, err := v.Amount("openingBalance"); err == nil {
			return b, true
		}
	}
	return 0, false
}

// classify decides the direction of a line from the balance progression,
// falling back to the description when the balances do not tell.
func classify(amount, balance, previous int64, known bool, description string) models.TransactionType {
	if known {
		debit := abs(previous-amount-balance) <= 1
		credit := abs(previous+amount-balance) <= 1
		switch {
		case debit && !credit:
			return debitType(description)
		case credit && !debit:
			return creditType(description)
		}
	}
	if isDebitDescription(description) && !isCreditDescription(description) {
		return debitType(description)
	}
	return creditType(description)
}

func debitType(description string) models.TransactionType {
	lower := strings.ToLower(description)
	if strings.Contains(lower, "fee") || strings.Contains(lower, "charge") {
		return models.Fees
	}
	return models.Removal
}

func creditType(description string) models.TransactionType {
	if strings.Contains(strings.ToLower(description), "interest") {
		return models.Interest
	}
	return models.Deposit
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var debitKeywords = []string{
	"card payment", "direct debit", "debit", "payment", "withdrawal",
	"transfer out", "standing order", "dd ", "pos ", "atm ",
	"purchase", "fee", "charge",
}

func isDebitDescription(desc string) bool { return containsAny(desc, debitKeywords) }

var creditKeywords = []string{
	"direct credit", "credit from", "bgc ", "bacs ",
	"refund", "interest paid", "transfer in", "transfer from",
	"payment received", "salary",
}

func isCreditDescription(desc string) bool { return containsAny(desc, creditKeywords) }

var summaryKeywords = []string{
	"opening balance", "closing balance", "total paid in",
	"total paid out", "total payments", "total receipts",
	"balance carried forward", "statement period", "page ", "continued",
}

func isSummaryLine(line string) bool { return containsAny(line, summaryKeywords) }

// Metro reads Metro Bank statements.
func Metro() extract.RuleSet {
	return statement{
		name:        "metro",
		label:       "Metro Bank",
		identifiers: []string{"Metro Bank", "METRO BANK", "metrobankonline"},
		date:        slashDate,
	}.ruleSet()
}

// HSBC reads HSBC UK statements; dates appear as "15 Jan 24", "15-Jan-24"
// or "15/01/2024" depending on the statement generation.
func HSBC() extract.RuleSet {
	return statement{
		name:        "hsbc",
		label:       "HSBC",
		identifiers: []string{"HSBC", "hsbc.co.uk", "HSBC UK Bank"},
		date:        textDate + `|` + dashDate + `|` + slashDate,
	}.ruleSet()
}

// Barclays reads Barclays statements.
func Barclays() extract.RuleSet {
	return statement{
		name:        "barclays",
		label:       "Barclays",
		identifiers: []string{"Barclays", "BARCLAYS", "barclays.co.uk"},
		date:        slashDate + `|` + textDate,
	}.ruleSet()
}
