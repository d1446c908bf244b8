package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/feeledger"
	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
)

type Store struct {
	mu sync.RWMutex

	// Fee record storage
	fees map[string]*fee.Record

	// Payment storage, append-only
	payments []*payment.Payment
}

func New() *Store {
	return &Store{
		fees:     make(map[string]*fee.Record),
		payments: make([]*payment.Payment, 0),
	}
}

// Fee Store implementation

func (s *Store) CreateFee(_ context.Context, r *fee.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fees[r.ID.String()]; exists {
		return feeledger.ErrAlreadyExists
	}
	s.fees[r.ID.String()] = r
	return nil
}

func (s *Store) GetFee(_ context.Context, feeID id.FeeID) (*fee.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.fees[feeID.String()]; ok {
		return r, nil
	}
	return nil, feeledger.ErrFeeNotFound
}

func (s *Store) ListFees(_ context.Context, accountID string, opts fee.ListOpts) ([]*fee.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*fee.Record, 0)
	for _, r := range s.fees {
		if r.AccountID != accountID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if opts.FeeType != "" && r.FeeType != opts.FeeType {
			continue
		}
		if opts.AcademicPeriod != "" && r.AcademicPeriod != opts.AcademicPeriod {
			continue
		}
		result = append(result, r)
	}

	// Map iteration order is random; keep listings stable by due date.
	sort.Slice(result, func(i, j int) bool {
		if result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].DueDate.Before(result[j].DueDate)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdateFee(_ context.Context, r *fee.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fees[r.ID.String()]; !exists {
		return feeledger.ErrFeeNotFound
	}
	s.fees[r.ID.String()] = r
	return nil
}

func (s *Store) DeleteFee(_ context.Context, feeID id.FeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.fees, feeID.String())
	return nil
}

func (s *Store) ReplaceFees(_ context.Context, accountID string, records []*fee.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, r := range s.fees {
		if r.AccountID == accountID {
			delete(s.fees, key)
		}
	}
	for _, r := range records {
		s.fees[r.ID.String()] = r
	}
	return nil
}

// Payment Store implementation

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.ID.String() == p.ID.String() {
			return feeledger.ErrAlreadyExists
		}
	}
	s.payments = append(s.payments, p)
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.ID.String() == paymentID.String() {
			return p, nil
		}
	}
	return nil, feeledger.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, accountID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.AccountID != accountID {
			continue
		}
		if !opts.FeeID.IsNil() && p.FeeID.String() != opts.FeeID.String() {
			continue
		}
		if opts.Method != "" && p.Method != opts.Method {
			continue
		}
		result = append(result, p)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) ListPaymentsByFee(_ context.Context, feeID id.FeeID) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.FeeID.String() == feeID.String() {
			result = append(result, p)
		}
	}
	return result, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
