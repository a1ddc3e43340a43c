package internal

import (
	"strings"
	"time"
)

// Order is a purchase extracted from one order-confirmation email.
// Amount is in ledger milliunits (1/1000 of a currency unit) and is
// always negative, since every confirmed order is an expense.
type Order struct {
	Date   time.Time
	Amount int64
	Items  []string
}

// Memo renders the order's items the way they are written into a
// matched transaction's memo field.
func (o Order) Memo() string {
	return strings.Join(o.Items, ", ")
}

// Transaction is a ledger record as returned by the budgeting service.
// Amounts are milliunits, dates are day-granular.
type Transaction struct {
	ID        string
	Date      time.Time
	Amount    int64
	Memo      string
	PayeeName string
	Approved  bool
	Deleted   bool
}

// Annotated reports whether the transaction already carries a memo and
// is therefore excluded from matching.
func (t Transaction) Annotated() bool {
	return len(t.Memo) > 0
}

// Match pairs a ledger transaction with the order whose items should be
// written into its memo.
type Match struct {
	TransactionID string
	Order         Order
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// ReconcileExportRow is one line of the reconcile report export.
type ReconcileExportRow struct {
	TransactionID string
	Date          string
	AmountMilli   int64
	Memo          string
	ItemCount     int
	Payee         string
}
