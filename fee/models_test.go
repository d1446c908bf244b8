package fee

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/types"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		amount  types.Money
		paid    types.Money
		dueDate time.Time
		want    Status
	}{
		{"unpaid before due", types.UGX(500000), types.UGX(0), future, StatusPending},
		{"partial before due", types.UGX(500000), types.UGX(200000), future, StatusPartial},
		{"settled", types.UGX(500000), types.UGX(500000), future, StatusPaid},
		{"unpaid past due", types.UGX(500000), types.UGX(0), past, StatusOverdue},
		{"partial past due", types.UGX(500000), types.UGX(499999), past, StatusOverdue},
		{"settled past due stays paid", types.UGX(500000), types.UGX(500000), past, StatusPaid},
		{"due exactly now is not overdue", types.UGX(500000), types.UGX(0), now, StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.amount, tt.paid, tt.dueDate, now)
			if got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordOutstanding(t *testing.T) {
	r := &Record{
		ID:         id.NewFeeID(),
		Amount:     types.UGX(800000),
		PaidAmount: types.UGX(300000),
	}
	if got := r.Outstanding(); got.Amount != 500000 {
		t.Errorf("Outstanding() = %v, want 500000", got.Amount)
	}

	r.PaidAmount = types.UGX(800000)
	if got := r.Outstanding(); !got.IsZero() {
		t.Errorf("Outstanding() on settled record = %v, want zero", got)
	}
}

func TestRecordValidate(t *testing.T) {
	now := time.Now()
	base := func() *Record {
		return &Record{
			ID:             id.NewFeeID(),
			AccountID:      "acct-1",
			FeeType:        "tuition",
			AcademicPeriod: "2026-T1",
			Amount:         types.UGX(500000),
			PaidAmount:     types.UGX(0),
			DueDate:        now.Add(14 * 24 * time.Hour),
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid record failed validation: %v", err)
	}

	zero := base()
	zero.Amount = types.UGX(0)
	if err := zero.Validate(); err == nil {
		t.Error("expected error for zero amount")
	}

	negative := base()
	negative.Amount = types.Money{Amount: -100, Currency: "ugx"}
	if err := negative.Validate(); err == nil {
		t.Error("expected error for negative amount")
	}

	over := base()
	over.PaidAmount = types.UGX(600000)
	err := over.Validate()
	if err == nil {
		t.Error("expected error for paid amount above amount")
	}
	var vErr ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %T, want ValidationError", err)
	}
	if vErr.RecordID != over.ID.String() {
		t.Errorf("ValidationError.RecordID = %q, want %q", vErr.RecordID, over.ID)
	}
	if vErr.Field != "paid_amount" {
		t.Errorf("ValidationError.Field = %q, want %q", vErr.Field, "paid_amount")
	}

	mismatch := base()
	mismatch.PaidAmount = types.KES(100)
	if err := mismatch.Validate(); err == nil {
		t.Error("expected error for currency mismatch")
	}
}

func TestRecordClone(t *testing.T) {
	paidAt := time.Now()
	r := &Record{
		ID:         id.NewFeeID(),
		AccountID:  "acct-1",
		Amount:     types.UGX(500000),
		PaidAmount: types.UGX(500000),
		Status:     StatusPaid,
		PaidAt:     &paidAt,
		Metadata:   map[string]string{"term": "one"},
	}

	c := r.Clone()
	c.PaidAmount = types.UGX(0)
	c.Metadata["term"] = "two"
	*c.PaidAt = paidAt.Add(time.Hour)

	if r.PaidAmount.Amount != 500000 {
		t.Error("clone mutation leaked into original paid amount")
	}
	if r.Metadata["term"] != "one" {
		t.Error("clone mutation leaked into original metadata")
	}
	if !r.PaidAt.Equal(paidAt) {
		t.Error("clone mutation leaked into original paid_at")
	}
}
