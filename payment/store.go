package payment

import (
	"context"

	"github.com/xraph/feeledger/id"
)

type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	List(ctx context.Context, accountID string, opts ListOpts) ([]*Payment, error)
	ListByFee(ctx context.Context, feeID id.FeeID) ([]*Payment, error)
}

type ListOpts struct {
	FeeID  id.FeeID
	Method Method
	Limit  int
	Offset int
}
