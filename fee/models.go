// Package fee defines the fee record model and its derived payment status.
//
// A Record is one billable obligation (fee type × academic period) owed by an
// account. Status is never stored as independent truth: it is always derived
// from the record's numeric state and due date via DeriveStatus, so that it
// cannot diverge from PaidAmount.
package fee

import (
	"fmt"
	"time"

	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/types"
)

// Status is the derived payment state of a fee record.
type Status string

const (
	// StatusPending: nothing paid, due date not yet passed.
	StatusPending Status = "pending"
	// StatusPartial: partially paid, due date not yet passed.
	StatusPartial Status = "partial"
	// StatusPaid: fully paid. Terminal — a settled record never leaves it.
	StatusPaid Status = "paid"
	// StatusOverdue: due date passed with a balance still owing.
	StatusOverdue Status = "overdue"
)

// Record is one fee obligation owed by an account for one academic period.
// Amount is immutable once the record exists; PaidAmount only ever grows,
// and never beyond Amount.
type Record struct {
	types.Entity
	ID             id.FeeID          `json:"id"`
	AccountID      string            `json:"account_id"`
	FeeType        string            `json:"fee_type"`
	AcademicPeriod string            `json:"academic_period"`
	Amount         types.Money       `json:"amount"`
	PaidAmount     types.Money       `json:"paid_amount"`
	DueDate        time.Time         `json:"due_date"`
	Status         Status            `json:"status"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// DeriveStatus computes the payment status from a record's numeric state.
// It is the single derivation rule shared by the load and payment paths:
//
//   - paid == amount            → Paid (terminal)
//   - due date before now       → Overdue
//   - 0 < paid < amount         → Partial
//   - otherwise                 → Pending
//
// Overdue is Pending/Partial crossed with a late due date; it is not
// reachable from Paid.
func DeriveStatus(amount, paid types.Money, dueDate, now time.Time) Status {
	if paid.Equal(amount) {
		return StatusPaid
	}
	if dueDate.Before(now) {
		return StatusOverdue
	}
	if paid.IsPositive() {
		return StatusPartial
	}
	return StatusPending
}

// Outstanding returns the remaining balance on the record.
// Never negative: a settled record contributes zero.
func (r *Record) Outstanding() types.Money {
	remaining := r.Amount.Subtract(r.PaidAmount)
	if remaining.IsNegative() {
		panic(fmt.Sprintf("fee: record %s has paid_amount above amount", r.ID))
	}
	return remaining
}

// IsSettled reports whether the record has been fully paid.
func (r *Record) IsSettled() bool {
	return r.Status == StatusPaid
}

// Refresh re-derives the record's status against the given clock time.
func (r *Record) Refresh(now time.Time) {
	r.Status = DeriveStatus(r.Amount, r.PaidAmount, r.DueDate, now)
}

// Validate checks the load-boundary invariants: a positive amount and a paid
// amount within [0, amount] in the same currency. Violations come back as
// ValidationError values carrying the record's ID.
func (r *Record) Validate() error {
	if !r.Amount.IsPositive() {
		return ValidationError{RecordID: r.ID.String(), Field: "amount",
			Message: fmt.Sprintf("must be positive, got %s", r.Amount)}
	}
	if r.PaidAmount.Currency != "" && r.PaidAmount.Currency != r.Amount.Currency {
		return ValidationError{RecordID: r.ID.String(), Field: "paid_amount",
			Message: fmt.Sprintf("currency %q does not match %q", r.PaidAmount.Currency, r.Amount.Currency)}
	}
	if r.PaidAmount.IsNegative() {
		return ValidationError{RecordID: r.ID.String(), Field: "paid_amount",
			Message: fmt.Sprintf("must not be negative, got %s", r.PaidAmount)}
	}
	if r.PaidAmount.Amount > r.Amount.Amount {
		return ValidationError{RecordID: r.ID.String(), Field: "paid_amount",
			Message: fmt.Sprintf("%s exceeds amount %s", r.PaidAmount, r.Amount)}
	}
	return nil
}

// Clone returns a deep copy of the record. Snapshots hand out clones so that
// callers cannot mutate ledger state behind the engine's back.
func (r *Record) Clone() *Record {
	c := *r
	if r.PaidAt != nil {
		t := *r.PaidAt
		c.PaidAt = &t
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Totals are the two ledger-wide aggregates. They are caches recomputed from
// the record list after every mutation, never independent sources of truth.
type Totals struct {
	// Outstanding is the sum of remaining balances over non-settled records.
	Outstanding types.Money `json:"outstanding"`
	// Collected is the sum of Amount over settled records.
	Collected types.Money `json:"collected"`
}

// Snapshot is a read-only view of one account's ledger: cloned records plus
// the aggregates derived from them.
type Snapshot struct {
	AccountID string    `json:"account_id"`
	Records   []*Record `json:"records"`
	Totals    Totals    `json:"totals"`
}

// Stats summarizes one account's ledger per status, in the shape a dashboard
// or summary view displays.
type Stats struct {
	TotalRecords int    `json:"total_records"`
	Pending      int    `json:"pending"`
	Partial      int    `json:"partial"`
	Paid         int    `json:"paid"`
	Overdue      int    `json:"overdue"`
	Totals       Totals `json:"totals"`
}
