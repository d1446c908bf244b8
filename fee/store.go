package fee

import (
	"context"

	"github.com/xraph/feeledger/id"
)

type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, feeID id.FeeID) (*Record, error)
	List(ctx context.Context, accountID string, opts ListOpts) ([]*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, feeID id.FeeID) error
	// Replace swaps an account's full record set in one operation.
	// Used by bulk loads, where the incoming set is the new truth.
	Replace(ctx context.Context, accountID string, records []*Record) error
}

type ListOpts struct {
	Status         Status
	FeeType        string
	AcademicPeriod string
	Limit          int
	Offset         int
}
