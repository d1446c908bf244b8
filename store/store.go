package store

import (
	"context"

	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
)

// Store is the unified storage interface for all Feeledger entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Fee record methods
	CreateFee(ctx context.Context, r *fee.Record) error
	GetFee(ctx context.Context, feeID id.FeeID) (*fee.Record, error)
	ListFees(ctx context.Context, accountID string, opts fee.ListOpts) ([]*fee.Record, error)
	UpdateFee(ctx context.Context, r *fee.Record) error
	DeleteFee(ctx context.Context, feeID id.FeeID) error
	// ReplaceFees swaps an account's full record set atomically.
	ReplaceFees(ctx context.Context, accountID string, records []*fee.Record) error

	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error)
	ListPayments(ctx context.Context, accountID string, opts payment.ListOpts) ([]*payment.Payment, error)
	ListPaymentsByFee(ctx context.Context, feeID id.FeeID) ([]*payment.Payment, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
