// Package payment defines the payment event model. A Payment is an immutable
// record of money applied against a fee: payments are only ever appended,
// never edited, so the payment list doubles as the audit trail.
package payment

import (
	"fmt"
	"time"

	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/types"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
	MethodCheque       Method = "cheque"
	MethodOther        Method = "other"
)

type Payment struct {
	ID         id.PaymentID      `json:"id"`
	AccountID  string            `json:"account_id"`
	FeeID      id.FeeID          `json:"fee_id"`
	Amount     types.Money       `json:"amount"`
	Method     Method            `json:"method,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	RecordedBy string            `json:"recorded_by,omitempty"`
	AppliedAt  time.Time         `json:"applied_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks the record-boundary invariants for a payment request.
func (p *Payment) Validate() error {
	if p.FeeID.IsNil() {
		return fmt.Errorf("payment: fee id is required")
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("payment: amount must be positive, got %s", p.Amount)
	}
	return nil
}

// Clone returns a deep copy of the payment.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
