package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	feeledger "github.com/xraph/feeledger"
	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
	ledgerstore "github.com/xraph/feeledger/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("feeledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("feeledger/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetFee(ctx context.Context, feeID id.FeeID) (*fee.Record, error) {
	m := new(feeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", feeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, feeledger.ErrFeeNotFound
		}
		return nil, err
	}
	return fromFeeModel(m)
}

func (s *Store) ListFees(ctx context.Context, accountID string, opts fee.ListOpts) ([]*fee.Record, error) {
	var models []feeModel
	q := s.sdb.NewSelect(&models).Where("account_id = ?", accountID)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.FeeType != "" {
		q = q.Where("fee_type = ?", opts.FeeType)
	}
	if opts.AcademicPeriod != "" {
		q = q.Where("academic_period = ?", opts.AcademicPeriod)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("due_date ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return feeledger.ErrFeeNotFound
	}
	return nil
}

func (s *Store) DeleteFee(ctx context.Context, feeID id.FeeID) error {
	res, err := s.sdb.NewDelete((*feeModel)(nil)).
		Where("id = ?", feeID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return feeledger.ErrFeeNotFound
	}
	return nil
}

func (s *Store) ReplaceFees(ctx context.Context, accountID string, records []*fee.Record) error {
	if _, err := s.sdb.NewDelete((*feeModel)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	// Single multi-row insert so the batch lands atomically after the delete.
	models := make([]feeModel, len(records))
	for i, r := range records {
		models[i] = *toFeeModel(r)
	}
	if _, err := s.sdb.NewInsert(&models).Exec(ctx); err != nil {
		return err
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", paymentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, feeledger.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, accountID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.sdb.NewSelect(&models).Where("account_id = ?", accountID)

	if !opts.FeeID.IsNil() {
		q = q.Where("fee_id = ?", opts.FeeID.String())
	}
	if opts.Method != "" {
		q = q.Where("method = ?", string(opts.Method))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("applied_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	err := s.sdb.NewSelect(&models).
		Where("fee_id = ?", feeID.String()).
		OrderExpr("applied_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
