package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	feeledger "github.com/xraph/feeledger"
	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
	ledgerstore "github.com/xraph/feeledger/store"
)

// Collection name constants.
const (
	colFees     = "feeledger_fees"
	colPayments = "feeledger_payments"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all feeledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("feeledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Fee Store ====================

func (s *Store) CreateFee(ctx context.Context, r *fee.Record) error {
	m := toFeeModel(r)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("feeledger/mongo: create fee: %w", err)
	}
	return nil
}

func (s *Store) GetFee(ctx context.Context, feeID id.FeeID) (*fee.Record, error) {
	var m feeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": feeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, feeledger.ErrFeeNotFound
		}
		return nil, fmt.Errorf("feeledger/mongo: get fee: %w", err)
	}
	return fromFeeModel(&m)
}

func (s *Store) ListFees(ctx context.Context, accountID string, opts fee.ListOpts) ([]*fee.Record, error) {
	var models []feeModel

	filter := bson.M{"account_id": accountID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.FeeType != "" {
		filter["fee_type"] = opts.FeeType
	}
	if opts.AcademicPeriod != "" {
		filter["academic_period"] = opts.AcademicPeriod
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "due_date", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("feeledger/mongo: list fees: %w", err)
	}

	result := make([]*fee.Record, len(models))
	for i := range models {
		r, err := fromFeeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) UpdateFee(ctx context.Context, r *fee.Record) error {
	m := toFeeModel(r)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("feeledger/mongo: update fee: %w", err)
	}
	if res.MatchedCount() == 0 {
		return feeledger.ErrFeeNotFound
	}
	return nil
}

func (s *Store) DeleteFee(ctx context.Context, feeID id.FeeID) error {
	res, err := s.mdb.NewDelete((*feeModel)(nil)).
		Filter(bson.M{"_id": feeID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("feeledger/mongo: delete fee: %w", err)
	}
	if res.DeletedCount() == 0 {
		return feeledger.ErrFeeNotFound
	}
	return nil
}

func (s *Store) ReplaceFees(ctx context.Context, accountID string, records []*fee.Record) error {
	_, err := s.mdb.NewDelete((*feeModel)(nil)).
		Filter(bson.M{"account_id": accountID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("feeledger/mongo: replace fees: %w", err)
	}
	for _, r := range records {
		m := toFeeModel(r)
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("feeledger/mongo: replace fees: %w", err)
		}
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("feeledger/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, feeledger.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("feeledger/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, accountID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{"account_id": accountID}
	if !opts.FeeID.IsNil() {
		filter["fee_id"] = opts.FeeID.String()
	}
	if opts.Method != "" {
		filter["method"] = string(opts.Method)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "applied_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("feeledger/mongo: list payments: %w", err)
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) ListPaymentsByFee(ctx context.Context, feeID id.FeeID) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"fee_id": feeID.String()}).
		Sort(bson.D{{Key: "applied_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("feeledger/mongo: list payments by fee: %w", err)
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Helpers ====================

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colFees: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "due_date", Value: 1}}},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "academic_period", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "applied_at", Value: 1}}},
			{Keys: bson.D{{Key: "fee_id", Value: 1}, {Key: "applied_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "reference", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
	}
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
