package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
	"github.com/xraph/feeledger/types"
)

// ==================== Fee record models ====================

type feeModel struct {
	grove.BaseModel `grove:"table:feeledger_fees"`

	ID             string            `grove:"id,pk"           bson:"_id"`
	AccountID      string            `grove:"account_id"      bson:"account_id"`
	FeeType        string            `grove:"fee_type"        bson:"fee_type"`
	AcademicPeriod string            `grove:"academic_period" bson:"academic_period"`
	Amount         int64             `grove:"amount"          bson:"amount"`
	PaidAmount     int64             `grove:"paid_amount"     bson:"paid_amount"`
	Currency       string            `grove:"currency"        bson:"currency"`
	DueDate        time.Time         `grove:"due_date"        bson:"due_date"`
	Status         string            `grove:"status"          bson:"status"`
	PaidAt         *time.Time        `grove:"paid_at"         bson:"paid_at,omitempty"`
	Metadata       map[string]string `grove:"metadata"        bson:"metadata,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"      bson:"updated_at"`
}

func toFeeModel(r *fee.Record) *feeModel {
	return &feeModel{
		ID:             r.ID.String(),
		AccountID:      r.AccountID,
		FeeType:        r.FeeType,
		AcademicPeriod: r.AcademicPeriod,
		Amount:         r.Amount.Amount,
		PaidAmount:     r.PaidAmount.Amount,
		Currency:       r.Amount.Currency,
		DueDate:        r.DueDate,
		Status:         string(r.Status),
		PaidAt:         r.PaidAt,
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromFeeModel(m *feeModel) (*fee.Record, error) {
	feeID, err := id.ParseFeeID(m.ID)
	if err != nil {
		return nil, err
	}

	return &fee.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             feeID,
		AccountID:      m.AccountID,
		FeeType:        m.FeeType,
		AcademicPeriod: m.AcademicPeriod,
		Amount:         types.Money{Amount: m.Amount, Currency: m.Currency},
		PaidAmount:     types.Money{Amount: m.PaidAmount, Currency: m.Currency},
		DueDate:        m.DueDate,
		Status:         fee.Status(m.Status),
		PaidAt:         m.PaidAt,
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:feeledger_payments"`

	ID         string            `grove:"id,pk"       bson:"_id"`
	AccountID  string            `grove:"account_id"  bson:"account_id"`
	FeeID      string            `grove:"fee_id"      bson:"fee_id"`
	Amount     int64             `grove:"amount"      bson:"amount"`
	Currency   string            `grove:"currency"    bson:"currency"`
	Method     string            `grove:"method"      bson:"method"`
	Reference  string            `grove:"reference"   bson:"reference"`
	RecordedBy string            `grove:"recorded_by" bson:"recorded_by"`
	AppliedAt  time.Time         `grove:"applied_at"  bson:"applied_at"`
	Metadata   map[string]string `grove:"metadata"    bson:"metadata,omitempty"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:         p.ID.String(),
		AccountID:  p.AccountID,
		FeeID:      p.FeeID.String(),
		Amount:     p.Amount.Amount,
		Currency:   p.Amount.Currency,
		Method:     string(p.Method),
		Reference:  p.Reference,
		RecordedBy: p.RecordedBy,
		AppliedAt:  p.AppliedAt,
		Metadata:   p.Metadata,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	feeID, err := id.ParseFeeID(m.FeeID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		ID:         paymentID,
		AccountID:  m.AccountID,
		FeeID:      feeID,
		Amount:     types.Money{Amount: m.Amount, Currency: m.Currency},
		Method:     payment.Method(m.Method),
		Reference:  m.Reference,
		RecordedBy: m.RecordedBy,
		AppliedAt:  m.AppliedAt,
		Metadata:   m.Metadata,
	}, nil
}
