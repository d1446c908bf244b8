package feeledger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
	"github.com/xraph/feeledger/plugin"
	"github.com/xraph/feeledger/store"
	"github.com/xraph/feeledger/types"
)

// Ledger is the main fee ledger engine. All mutations go through a single
// writer lock: the two aggregates in a Snapshot are always consistent with
// the record set they were computed from, and no payment can interleave with
// a bulk load.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Serializes LoadRecords, ApplyPayment and RefreshStatuses.
	mu sync.Mutex

	// Clock, swappable in tests.
	now func() time.Time

	// Currency applied to records loaded without one. Empty means none.
	defaultCurrency string
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source used for due-date checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithDefaultCurrency sets the currency applied to loaded records that carry
// an amount without one.
func WithDefaultCurrency(currency string) Option {
	return func(l *Ledger) {
		l.defaultCurrency = strings.ToLower(currency)
	}
}

// Start prepares the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	// Migrate database
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	l.plugins.EmitInit(ctx, l)

	l.logger.Info("fee ledger started")

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Record Loading
// ──────────────────────────────────────────────────

// LoadRecords replaces an account's full record set with a fresh batch from
// the source system. The batch is all-or-nothing: if any record fails
// validation the whole load is rejected and the existing set stands.
// Statuses and paid timestamps are re-derived on the way in, so stale values
// from the source cannot survive a load. IDs assigned to incoming records
// are written back to the caller's slice so follow-up payments can
// reference them.
func (l *Ledger) LoadRecords(ctx context.Context, accountID string, records []*fee.Record) error {
	if accountID == "" {
		return ValidationError{Field: "account_id", Message: "must not be empty"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	prepared := make([]*fee.Record, 0, len(records))
	var errs MultiError

	for _, r := range records {
		c := r.Clone()
		if c.ID.IsNil() {
			c.ID = id.NewFeeID()
		}
		c.AccountID = accountID
		if c.Amount.Currency == "" && l.defaultCurrency != "" {
			c.Amount.Currency = l.defaultCurrency
		}
		if c.PaidAmount.Currency == "" {
			c.PaidAmount = types.Zero(c.Amount.Currency)
		}
		if err := c.Validate(); err != nil {
			errs.Add(err)
			continue
		}
		c.Entity = types.NewEntity()
		c.Refresh(now)
		if c.Status == fee.StatusPaid {
			if c.PaidAt == nil {
				t := now
				c.PaidAt = &t
			}
		} else {
			c.PaidAt = nil
		}
		prepared = append(prepared, c)
	}

	if errs.HasErrors() {
		l.logger.Warn("record load rejected",
			"account_id", accountID,
			"records", len(records),
			"invalid", len(errs.Errors),
		)
		return &errs
	}

	// The store may fail partway through a replace. Keep the previous set so
	// the account can be put back rather than left half-loaded.
	previous, err := l.store.ListFees(ctx, accountID, fee.ListOpts{})
	if err != nil {
		return err
	}

	if err := l.store.ReplaceFees(ctx, accountID, prepared); err != nil {
		if rbErr := l.store.ReplaceFees(ctx, accountID, previous); rbErr != nil {
			l.logger.Error("record load failed and previous set could not be restored",
				"account_id", accountID,
				"error", err,
				"restore_error", rbErr,
			)
		}
		return err
	}

	for i, c := range prepared {
		records[i].ID = c.ID
	}

	l.plugins.EmitRecordsLoaded(ctx, accountID, len(prepared))
	l.logger.Info("records loaded",
		"account_id", accountID,
		"count", len(prepared),
	)

	return nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// ApplyPayment applies a payment against a fee record and returns the
// updated record. Rejections leave the ledger exactly as it was; exact
// settlement is accepted, anything past the remaining balance is not.
func (l *Ledger) ApplyPayment(ctx context.Context, p *payment.Payment) (*fee.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkPayment(ctx, p); err != nil {
		return nil, l.reject(ctx, p, err)
	}

	record, err := l.store.GetFee(ctx, p.FeeID)
	if err != nil {
		return nil, l.reject(ctx, p, err)
	}

	if record.IsSettled() {
		return nil, l.reject(ctx, p, ErrFeeSettled)
	}
	if p.Amount.Currency != record.Amount.Currency {
		return nil, l.reject(ctx, p, ErrCurrencyMismatch)
	}

	remaining := record.Outstanding()
	if p.Amount.GreaterThan(remaining) {
		return nil, l.reject(ctx, p, OverpaymentError{
			FeeID:     record.ID,
			Requested: p.Amount,
			Remaining: remaining,
		})
	}

	now := l.now()

	// Mutate a clone so a store failure cannot leave a half-applied record.
	updated := record.Clone()
	updated.PaidAmount = updated.PaidAmount.Add(p.Amount)
	updated.Refresh(now)
	updated.Touch()
	if updated.Status == fee.StatusPaid {
		t := now
		updated.PaidAt = &t
	}

	if err := l.store.UpdateFee(ctx, updated); err != nil {
		return nil, err
	}

	applied := p.Clone()
	// Payment IDs are always engine-assigned; a caller-supplied ID could
	// collide with history and fail the insert below.
	applied.ID = id.NewPaymentID()
	applied.AccountID = updated.AccountID
	applied.AppliedAt = now
	if err := l.store.CreatePayment(ctx, applied); err != nil {
		// Put the fee back so a failed history write never leaves a
		// half-applied payment.
		if rbErr := l.store.UpdateFee(ctx, record); rbErr != nil {
			l.logger.Error("payment write failed and fee could not be restored",
				"fee_id", record.ID,
				"error", err,
				"restore_error", rbErr,
			)
		}
		return nil, err
	}

	l.plugins.EmitPaymentApplied(ctx, applied, updated)
	if updated.Status == fee.StatusPaid {
		l.plugins.EmitFeeSettled(ctx, updated)
	}

	l.logger.Info("payment applied",
		"payment_id", applied.ID,
		"fee_id", updated.ID,
		"account_id", updated.AccountID,
		"amount", p.Amount.String(),
		"status", updated.Status,
	)

	return updated.Clone(), nil
}

// checkPayment validates the payment request itself, before any record
// lookup.
func (l *Ledger) checkPayment(_ context.Context, p *payment.Payment) error {
	if p == nil {
		return ErrInvalidInput
	}
	if p.FeeID.IsNil() {
		return ValidationError{Field: "fee_id", Message: "must not be empty"}
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// reject emits the rejection hook and logs before handing the error back.
func (l *Ledger) reject(ctx context.Context, p *payment.Payment, err error) error {
	l.plugins.EmitPaymentRejected(ctx, p, err)
	l.logger.Warn("payment rejected",
		"fee_id", feeIDForLog(p),
		"error", err,
	)
	return err
}

func feeIDForLog(p *payment.Payment) string {
	if p == nil {
		return ""
	}
	return p.FeeID.String()
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Snapshot returns a read-only view of an account's ledger: cloned records
// ordered by due date plus totals recomputed from that exact set.
func (l *Ledger) Snapshot(ctx context.Context, accountID string) (*fee.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.store.ListFees(ctx, accountID, fee.ListOpts{})
	if err != nil {
		return nil, err
	}

	cloned := make([]*fee.Record, len(records))
	for i, r := range records {
		cloned[i] = r.Clone()
	}

	return &fee.Snapshot{
		AccountID: accountID,
		Records:   cloned,
		Totals:    computeTotals(records),
	}, nil
}

// ListFees lists an account's fee records with optional filters.
func (l *Ledger) ListFees(ctx context.Context, accountID string, opts fee.ListOpts) ([]*fee.Record, error) {
	records, err := l.store.ListFees(ctx, accountID, opts)
	if err != nil {
		return nil, err
	}
	cloned := make([]*fee.Record, len(records))
	for i, r := range records {
		cloned[i] = r.Clone()
	}
	return cloned, nil
}

// GetFee retrieves a single fee record.
func (l *Ledger) GetFee(ctx context.Context, feeID id.FeeID) (*fee.Record, error) {
	r, err := l.store.GetFee(ctx, feeID)
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// ListPayments lists an account's payment history.
func (l *Ledger) ListPayments(ctx context.Context, accountID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	payments, err := l.store.ListPayments(ctx, accountID, opts)
	if err != nil {
		return nil, err
	}
	cloned := make([]*payment.Payment, len(payments))
	for i, p := range payments {
		cloned[i] = p.Clone()
	}
	return cloned, nil
}

// ListPaymentsByFee lists all payments applied against one fee record.
func (l *Ledger) ListPaymentsByFee(ctx context.Context, feeID id.FeeID) ([]*payment.Payment, error) {
	payments, err := l.store.ListPaymentsByFee(ctx, feeID)
	if err != nil {
		return nil, err
	}
	cloned := make([]*payment.Payment, len(payments))
	for i, p := range payments {
		cloned[i] = p.Clone()
	}
	return cloned, nil
}

// Stats summarizes an account's ledger by status.
func (l *Ledger) Stats(ctx context.Context, accountID string) (*fee.Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.store.ListFees(ctx, accountID, fee.ListOpts{})
	if err != nil {
		return nil, err
	}

	stats := &fee.Stats{
		TotalRecords: len(records),
		Totals:       computeTotals(records),
	}
	for _, r := range records {
		switch r.Status {
		case fee.StatusPending:
			stats.Pending++
		case fee.StatusPartial:
			stats.Partial++
		case fee.StatusPaid:
			stats.Paid++
		case fee.StatusOverdue:
			stats.Overdue++
		}
	}
	return stats, nil
}

// RefreshStatuses re-derives every non-settled record's status against the
// current clock, moving records past their due date to overdue. Returns the
// number of records whose status changed.
func (l *Ledger) RefreshStatuses(ctx context.Context, accountID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.store.ListFees(ctx, accountID, fee.ListOpts{})
	if err != nil {
		return 0, err
	}

	now := l.now()
	changed := 0
	for _, r := range records {
		if r.IsSettled() {
			continue
		}
		next := fee.DeriveStatus(r.Amount, r.PaidAmount, r.DueDate, now)
		if next == r.Status {
			continue
		}

		updated := r.Clone()
		updated.Status = next
		updated.Touch()
		if err := l.store.UpdateFee(ctx, updated); err != nil {
			return changed, err
		}
		changed++

		if next == fee.StatusOverdue {
			l.plugins.EmitFeeOverdue(ctx, updated)
		}
	}

	if changed > 0 {
		l.logger.Info("statuses refreshed",
			"account_id", accountID,
			"changed", changed,
		)
	}
	return changed, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// computeTotals recomputes the two ledger aggregates from the full record
// set. They are never adjusted incrementally.
func computeTotals(records []*fee.Record) fee.Totals {
	currency := ""
	if len(records) > 0 {
		currency = records[0].Amount.Currency
	}
	totals := fee.Totals{
		Outstanding: types.Zero(currency),
		Collected:   types.Zero(currency),
	}
	for _, r := range records {
		if r.IsSettled() {
			totals.Collected = totals.Collected.Add(r.Amount)
		} else {
			totals.Outstanding = totals.Outstanding.Add(r.Outstanding())
		}
	}
	return totals
}
