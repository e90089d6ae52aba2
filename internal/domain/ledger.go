package domain

import "time"

// LedgerEntryType distinguishes debits from compensating refunds.
type LedgerEntryType string

const (
	LedgerDebit  LedgerEntryType = "debit"
	LedgerRefund LedgerEntryType = "refund"
)

// UsageLogEntry is one append-only row of the credit ledger. CreditsDelta is
// positive for debits and negative for refunds.
type UsageLogEntry struct {
	ID              string
	OwnerID         string
	JobID           string
	EntryType       LedgerEntryType
	CreditsDelta    int
	ReversesEntryID string
	Reason          string
	CreatedAt       time.Time
}

// RefundRequest identifies the job charge to reverse.
type RefundRequest struct {
	JobID   string
	OwnerID string
	Reason  string
}

// RefundResult values.
const (
	RefundApplied         = "refunded"
	RefundAlreadyReversed = "already_refunded"
	RefundNoCharge        = "no_charge"
)

// RefundOutcome reports what a refund attempt did.
type RefundOutcome struct {
	Result       string `json:"result"`
	Amount       int    `json:"amount"`
	EntryID      string `json:"entryId,omitempty"`
	DebitEntryID string `json:"debitEntryId,omitempty"`
}

// Refunded reports whether this call appended a refund entry.
func (o RefundOutcome) Refunded() bool { return o.Result == RefundApplied }
