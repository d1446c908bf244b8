package feeledger_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/xraph/feeledger"
	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/id"
	"github.com/xraph/feeledger/payment"
	"github.com/xraph/feeledger/store"
	"github.com/xraph/feeledger/store/memory"
	"github.com/xraph/feeledger/types"
)

// flakyStore must still satisfy the full store contract.
var _ store.Store = (*flakyStore)(nil)

const account = "acct-kampala-1"

func newLedger(t *testing.T, now time.Time) *feeledger.Ledger {
	t.Helper()
	return newLedgerWith(t, memory.New(), now)
}

func newLedgerWith(t *testing.T, s store.Store, now time.Time) *feeledger.Ledger {
	t.Helper()
	l := feeledger.New(s, feeledger.WithClock(func() time.Time { return now }))
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := l.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return l
}

// flakyStore wraps the memory store to fail a chosen write exactly once,
// simulating a backend falling over mid-operation.
type flakyStore struct {
	*memory.Store
	failCreatePayment bool
	failReplaceAfter  int // negative disables; otherwise write this many rows, then fail
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New(), failReplaceAfter: -1}
}

func (s *flakyStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	if s.failCreatePayment {
		s.failCreatePayment = false
		return errors.New("payment write refused")
	}
	return s.Store.CreatePayment(ctx, p)
}

func (s *flakyStore) ReplaceFees(ctx context.Context, accountID string, records []*fee.Record) error {
	if s.failReplaceAfter >= 0 {
		n := s.failReplaceAfter
		s.failReplaceAfter = -1
		if n > len(records) {
			n = len(records)
		}
		_ = s.Store.ReplaceFees(ctx, accountID, records[:n])
		return errors.New("replace interrupted")
	}
	return s.Store.ReplaceFees(ctx, accountID, records)
}

func loadOne(t *testing.T, l *feeledger.Ledger, amount, paid int64, due time.Time) id.FeeID {
	t.Helper()
	r := &fee.Record{
		ID:             id.NewFeeID(),
		FeeType:        "tuition",
		AcademicPeriod: "2026-T1",
		Amount:         types.UGX(amount),
		PaidAmount:     types.UGX(paid),
		DueDate:        due,
	}
	if err := l.LoadRecords(context.Background(), account, []*fee.Record{r}); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	return r.ID
}

func pay(l *feeledger.Ledger, feeID id.FeeID, amount int64) (*fee.Record, error) {
	return l.ApplyPayment(context.Background(), &payment.Payment{
		FeeID:  feeID,
		Amount: types.UGX(amount),
		Method: payment.MethodMobileMoney,
	})
}

func snapshot(t *testing.T, l *feeledger.Ledger) *fee.Snapshot {
	t.Helper()
	snap, err := l.Snapshot(context.Background(), account)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

func TestLoadSingleRecordPending(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)

	loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	snap := snapshot(t, l)
	if len(snap.Records) != 1 {
		t.Fatalf("snapshot has %d records, want 1", len(snap.Records))
	}
	if got := snap.Records[0].Status; got != fee.StatusPending {
		t.Errorf("status = %v, want pending", got)
	}
	if snap.Totals.Outstanding.Amount != 15000 {
		t.Errorf("outstanding = %d, want 15000", snap.Totals.Outstanding.Amount)
	}
	if snap.Totals.Collected.Amount != 0 {
		t.Errorf("collected = %d, want 0", snap.Totals.Collected.Amount)
	}
}

func TestPartialPayment(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	updated, err := pay(l, feeID, 5000)
	if err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if updated.PaidAmount.Amount != 5000 {
		t.Errorf("paid amount = %d, want 5000", updated.PaidAmount.Amount)
	}
	if updated.Status != fee.StatusPartial {
		t.Errorf("status = %v, want partial", updated.Status)
	}

	snap := snapshot(t, l)
	if snap.Totals.Outstanding.Amount != 10000 {
		t.Errorf("outstanding = %d, want 10000", snap.Totals.Outstanding.Amount)
	}
}

func TestExactSettlement(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	if _, err := pay(l, feeID, 5000); err != nil {
		t.Fatalf("first ApplyPayment() error = %v", err)
	}
	updated, err := pay(l, feeID, 10000)
	if err != nil {
		t.Fatalf("settling ApplyPayment() error = %v", err)
	}
	if updated.Status != fee.StatusPaid {
		t.Errorf("status = %v, want paid", updated.Status)
	}
	if updated.PaidAt == nil {
		t.Error("settled record has no paid_at timestamp")
	}

	snap := snapshot(t, l)
	if snap.Totals.Outstanding.Amount != 0 {
		t.Errorf("outstanding = %d, want 0", snap.Totals.Outstanding.Amount)
	}
	if snap.Totals.Collected.Amount != 15000 {
		t.Errorf("collected = %d, want 15000", snap.Totals.Collected.Amount)
	}
}

func TestPaymentOnSettledRecordRejected(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))
	if _, err := pay(l, feeID, 15000); err != nil {
		t.Fatalf("settling ApplyPayment() error = %v", err)
	}

	before := snapshot(t, l)
	_, err := pay(l, feeID, 1)
	if !errors.Is(err, feeledger.ErrFeeSettled) {
		t.Fatalf("ApplyPayment() on settled record error = %v, want ErrFeeSettled", err)
	}
	if !feeledger.IsRejected(err) {
		t.Error("IsRejected() = false for settled-record error")
	}
	after := snapshot(t, l)
	if !reflect.DeepEqual(before, after) {
		t.Error("rejected payment changed the ledger")
	}
}

func TestOverdueResolvedByFullPayment(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 8000, 0, now.Add(-24*time.Hour))

	snap := snapshot(t, l)
	if snap.Records[0].Status != fee.StatusOverdue {
		t.Fatalf("status after load = %v, want overdue", snap.Records[0].Status)
	}

	updated, err := pay(l, feeID, 8000)
	if err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if updated.Status != fee.StatusPaid {
		t.Errorf("status = %v, want paid", updated.Status)
	}
}

func TestOverpaymentRejected(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))
	if _, err := pay(l, feeID, 5000); err != nil {
		t.Fatalf("first ApplyPayment() error = %v", err)
	}

	before := snapshot(t, l)
	_, err := pay(l, feeID, 20000)

	var opErr feeledger.OverpaymentError
	if !errors.As(err, &opErr) {
		t.Fatalf("ApplyPayment() error = %v, want OverpaymentError", err)
	}
	if opErr.Remaining.Amount != 10000 {
		t.Errorf("OverpaymentError.Remaining = %d, want 10000", opErr.Remaining.Amount)
	}
	if opErr.Requested.Amount != 20000 {
		t.Errorf("OverpaymentError.Requested = %d, want 20000", opErr.Requested.Amount)
	}

	after := snapshot(t, l)
	if !reflect.DeepEqual(before, after) {
		t.Error("rejected overpayment changed the ledger")
	}
}

func TestRejectionsLeaveLedgerUntouched(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 5000, now.Add(30*24*time.Hour))

	before := snapshot(t, l)

	attempts := []struct {
		name string
		pmt  *payment.Payment
	}{
		{"unknown fee", &payment.Payment{FeeID: id.NewFeeID(), Amount: types.UGX(100)}},
		{"zero amount", &payment.Payment{FeeID: feeID, Amount: types.UGX(0)}},
		{"negative amount", &payment.Payment{FeeID: feeID, Amount: types.Money{Amount: -50, Currency: "ugx"}}},
		{"nil fee id", &payment.Payment{Amount: types.UGX(100)}},
		{"wrong currency", &payment.Payment{FeeID: feeID, Amount: types.KES(100)}},
		{"overpayment", &payment.Payment{FeeID: feeID, Amount: types.UGX(999999)}},
	}

	for _, tt := range attempts {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.ApplyPayment(context.Background(), tt.pmt); err == nil {
				t.Fatal("ApplyPayment() succeeded, want error")
			}
			after := snapshot(t, l)
			if !reflect.DeepEqual(before, after) {
				t.Error("failed payment changed the ledger")
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	if _, err := pay(l, id.NewFeeID(), 100); !feeledger.IsNotFound(err) {
		t.Errorf("unknown fee error = %v, want not-found kind", err)
	}

	_, err := pay(l, feeID, 0)
	if !errors.Is(err, feeledger.ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}

	_, err = l.ApplyPayment(context.Background(), &payment.Payment{Amount: types.UGX(100)})
	var vErr feeledger.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("nil fee id error = %v, want ValidationError", err)
	}
}

func TestAggregatesMatchRecords(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	due := now.Add(30 * 24 * time.Hour)

	records := []*fee.Record{
		{ID: id.NewFeeID(), FeeType: "tuition", AcademicPeriod: "2026-T1", Amount: types.UGX(500000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "transport", AcademicPeriod: "2026-T1", Amount: types.UGX(120000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "meals", AcademicPeriod: "2026-T1", Amount: types.UGX(90000), DueDate: due},
	}
	if err := l.LoadRecords(context.Background(), account, records); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	check := func() {
		t.Helper()
		snap := snapshot(t, l)
		var outstanding, collected int64
		for _, r := range snap.Records {
			if r.PaidAmount.Amount < 0 || r.PaidAmount.Amount > r.Amount.Amount {
				t.Fatalf("record %s violates paid amount bounds: %d of %d",
					r.ID, r.PaidAmount.Amount, r.Amount.Amount)
			}
			if r.Status == fee.StatusPaid {
				collected += r.Amount.Amount
			} else {
				outstanding += r.Amount.Amount - r.PaidAmount.Amount
			}
		}
		if snap.Totals.Outstanding.Amount != outstanding {
			t.Errorf("outstanding = %d, recomputed = %d", snap.Totals.Outstanding.Amount, outstanding)
		}
		if snap.Totals.Collected.Amount != collected {
			t.Errorf("collected = %d, recomputed = %d", snap.Totals.Collected.Amount, collected)
		}
	}

	check()
	payments := []struct {
		idx    int
		amount int64
	}{
		{0, 200000}, {1, 120000}, {0, 150000}, {2, 50000}, {0, 150000}, {2, 40000},
	}
	for _, p := range payments {
		if _, err := pay(l, records[p.idx].ID, p.amount); err != nil {
			t.Fatalf("ApplyPayment(%d, %d) error = %v", p.idx, p.amount, err)
		}
		check()
	}

	snap := snapshot(t, l)
	if snap.Totals.Outstanding.Amount != 0 {
		t.Errorf("final outstanding = %d, want 0", snap.Totals.Outstanding.Amount)
	}
	if snap.Totals.Collected.Amount != 710000 {
		t.Errorf("final collected = %d, want 710000", snap.Totals.Collected.Amount)
	}
}

func TestLoadRejectsInvalidBatch(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	due := now.Add(30 * 24 * time.Hour)

	loadOne(t, l, 15000, 0, due)
	before := snapshot(t, l)

	batch := []*fee.Record{
		{ID: id.NewFeeID(), FeeType: "tuition", AcademicPeriod: "2026-T2", Amount: types.UGX(500000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "transport", AcademicPeriod: "2026-T2", Amount: types.UGX(0), DueDate: due},
	}
	err := l.LoadRecords(context.Background(), account, batch)
	if err == nil {
		t.Fatal("LoadRecords() accepted invalid batch")
	}
	var mErr *feeledger.MultiError
	if !errors.As(err, &mErr) {
		t.Fatalf("LoadRecords() error = %T, want *MultiError", err)
	}

	var vErr feeledger.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("LoadRecords() error = %v, does not match ValidationError", err)
	}
	if vErr.RecordID != batch[1].ID.String() {
		t.Errorf("ValidationError.RecordID = %q, want %q", vErr.RecordID, batch[1].ID)
	}
	if !feeledger.IsRejected(err) {
		t.Error("IsRejected() = false for a rejected load")
	}

	after := snapshot(t, l)
	if !reflect.DeepEqual(before, after) {
		t.Error("rejected load changed the ledger")
	}
}

func TestLoadReplacesRecordSet(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	due := now.Add(30 * 24 * time.Hour)

	loadOne(t, l, 15000, 0, due)
	loadOne(t, l, 8000, 0, due)

	snap := snapshot(t, l)
	if len(snap.Records) != 1 {
		t.Errorf("snapshot has %d records after reload, want 1", len(snap.Records))
	}
	if snap.Totals.Outstanding.Amount != 8000 {
		t.Errorf("outstanding = %d, want 8000", snap.Totals.Outstanding.Amount)
	}
}

func TestLoadDerivesStatusAndIgnoresStaleValues(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)

	r := &fee.Record{
		ID:             id.NewFeeID(),
		FeeType:        "tuition",
		AcademicPeriod: "2026-T1",
		Amount:         types.UGX(15000),
		PaidAmount:     types.UGX(15000),
		DueDate:        now.Add(30 * 24 * time.Hour),
		Status:         fee.StatusPending, // stale, must be re-derived
	}
	if err := l.LoadRecords(context.Background(), account, []*fee.Record{r}); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	snap := snapshot(t, l)
	if snap.Records[0].Status != fee.StatusPaid {
		t.Errorf("status = %v, want paid", snap.Records[0].Status)
	}
	if snap.Totals.Collected.Amount != 15000 {
		t.Errorf("collected = %d, want 15000", snap.Totals.Collected.Amount)
	}
}

func TestSnapshotIsReadOnlyView(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	snap := snapshot(t, l)
	snap.Records[0].PaidAmount = types.UGX(999999)
	snap.Records[0].Status = fee.StatusPaid

	got, err := l.GetFee(context.Background(), feeID)
	if err != nil {
		t.Fatalf("GetFee() error = %v", err)
	}
	if got.PaidAmount.Amount != 0 || got.Status != fee.StatusPending {
		t.Error("snapshot mutation leaked into ledger state")
	}
}

func TestPaymentHistory(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	if _, err := pay(l, feeID, 5000); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if _, err := pay(l, feeID, 10000); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	// Rejected payments must not appear in the history.
	if _, err := pay(l, feeID, 1); err == nil {
		t.Fatal("expected rejection on settled record")
	}

	history, err := l.ListPaymentsByFee(context.Background(), feeID)
	if err != nil {
		t.Fatalf("ListPaymentsByFee() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d payments, want 2", len(history))
	}
	var total int64
	for _, p := range history {
		if p.ID.IsNil() {
			t.Error("recorded payment has no id")
		}
		if !p.AppliedAt.Equal(now) {
			t.Errorf("payment applied_at = %v, want clock time %v", p.AppliedAt, now)
		}
		total += p.Amount.Amount
	}
	if total != 15000 {
		t.Errorf("history total = %d, want 15000", total)
	}
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	due := now.Add(30 * 24 * time.Hour)

	records := []*fee.Record{
		{ID: id.NewFeeID(), FeeType: "tuition", AcademicPeriod: "2026-T1", Amount: types.UGX(500000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "transport", AcademicPeriod: "2026-T1", Amount: types.UGX(120000), PaidAmount: types.UGX(60000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "meals", AcademicPeriod: "2026-T1", Amount: types.UGX(90000), PaidAmount: types.UGX(90000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "library", AcademicPeriod: "2025-T3", Amount: types.UGX(30000), DueDate: now.Add(-24 * time.Hour)},
	}
	if err := l.LoadRecords(context.Background(), account, records); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	stats, err := l.Stats(context.Background(), account)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRecords != 4 {
		t.Errorf("total records = %d, want 4", stats.TotalRecords)
	}
	if stats.Pending != 1 || stats.Partial != 1 || stats.Paid != 1 || stats.Overdue != 1 {
		t.Errorf("status counts = %d/%d/%d/%d, want 1 each",
			stats.Pending, stats.Partial, stats.Paid, stats.Overdue)
	}
	if stats.Totals.Collected.Amount != 90000 {
		t.Errorf("collected = %d, want 90000", stats.Totals.Collected.Amount)
	}
	if stats.Totals.Outstanding.Amount != 590000 {
		t.Errorf("outstanding = %d, want 590000", stats.Totals.Outstanding.Amount)
	}
}

func TestRefreshStatuses(t *testing.T) {
	start := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	current := start
	l := feeledger.New(memory.New(), feeledger.WithClock(func() time.Time { return current }))
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop() //nolint:errcheck

	due := start.Add(24 * time.Hour)
	records := []*fee.Record{
		{ID: id.NewFeeID(), FeeType: "tuition", AcademicPeriod: "2026-T1", Amount: types.UGX(500000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "meals", AcademicPeriod: "2026-T1", Amount: types.UGX(90000), PaidAmount: types.UGX(90000), DueDate: due},
	}
	if err := l.LoadRecords(context.Background(), account, records); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	// Nothing due yet.
	changed, err := l.RefreshStatuses(context.Background(), account)
	if err != nil {
		t.Fatalf("RefreshStatuses() error = %v", err)
	}
	if changed != 0 {
		t.Errorf("RefreshStatuses() changed %d records before due date, want 0", changed)
	}

	current = due.Add(time.Hour)
	changed, err = l.RefreshStatuses(context.Background(), account)
	if err != nil {
		t.Fatalf("RefreshStatuses() error = %v", err)
	}
	if changed != 1 {
		t.Errorf("RefreshStatuses() changed %d records, want 1", changed)
	}

	snap, err := l.Snapshot(context.Background(), account)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	for _, r := range snap.Records {
		if r.FeeType == "tuition" && r.Status != fee.StatusOverdue {
			t.Errorf("tuition status = %v, want overdue", r.Status)
		}
		if r.FeeType == "meals" && r.Status != fee.StatusPaid {
			t.Errorf("meals status = %v, want paid (settled records never regress)", r.Status)
		}
	}
}

type recordingPlugin struct {
	mu       sync.Mutex
	applied  int
	rejected int
	settled  int
	loaded   int
	overdue  int
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) OnRecordsLoaded(_ context.Context, _ string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded += count
	return nil
}

func (p *recordingPlugin) OnPaymentApplied(_ context.Context, _ interface{}, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied++
	return nil
}

func (p *recordingPlugin) OnPaymentRejected(_ context.Context, _ interface{}, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected++
	return nil
}

func (p *recordingPlugin) OnFeeSettled(_ context.Context, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled++
	return nil
}

func (p *recordingPlugin) OnFeeOverdue(_ context.Context, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overdue++
	return nil
}

func TestPluginHooks(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	rec := &recordingPlugin{}
	l := feeledger.New(memory.New(),
		feeledger.WithClock(func() time.Time { return now }),
		feeledger.WithPlugin(rec),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop() //nolint:errcheck

	r := &fee.Record{
		ID:             id.NewFeeID(),
		FeeType:        "tuition",
		AcademicPeriod: "2026-T1",
		Amount:         types.UGX(15000),
		DueDate:        now.Add(30 * 24 * time.Hour),
	}
	if err := l.LoadRecords(context.Background(), account, []*fee.Record{r}); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	if _, err := pay(l, r.ID, 5000); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if _, err := pay(l, r.ID, 10000); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if _, err := pay(l, r.ID, 1); err == nil {
		t.Fatal("expected rejection on settled record")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.loaded != 1 {
		t.Errorf("loaded = %d, want 1", rec.loaded)
	}
	if rec.applied != 2 {
		t.Errorf("applied = %d, want 2", rec.applied)
	}
	if rec.settled != 1 {
		t.Errorf("settled = %d, want 1", rec.settled)
	}
	if rec.rejected != 1 {
		t.Errorf("rejected = %d, want 1", rec.rejected)
	}
}

func TestConcurrentPaymentsCannotOverpay(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 10000, 0, now.Add(30*24*time.Hour))

	var wg sync.WaitGroup
	accepted := make(chan int64, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pay(l, feeID, 1000); err == nil {
				accepted <- 1000
			}
		}()
	}
	wg.Wait()
	close(accepted)

	var total int64
	for a := range accepted {
		total += a
	}
	if total > 10000 {
		t.Errorf("accepted payments total %d, exceeds amount owed 10000", total)
	}

	got, err := l.GetFee(context.Background(), feeID)
	if err != nil {
		t.Fatalf("GetFee() error = %v", err)
	}
	if got.PaidAmount.Amount != total {
		t.Errorf("paid amount = %d, accepted total = %d", got.PaidAmount.Amount, total)
	}
	if got.PaidAmount.Amount > got.Amount.Amount {
		t.Error("paid amount exceeds amount owed")
	}
}

func TestLoadWritesAssignedIDsBack(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	due := now.Add(30 * 24 * time.Hour)

	records := []*fee.Record{
		{FeeType: "tuition", AcademicPeriod: "2026-T1", Amount: types.UGX(15000), DueDate: due},
		{FeeType: "transport", AcademicPeriod: "2026-T1", Amount: types.UGX(8000), DueDate: due},
	}
	if err := l.LoadRecords(context.Background(), account, records); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	for i, r := range records {
		if r.ID.IsNil() {
			t.Fatalf("records[%d].ID is nil after load", i)
		}
	}

	// The written-back ID must resolve: a payment against it settles the fee.
	updated, err := pay(l, records[0].ID, 15000)
	if err != nil {
		t.Fatalf("ApplyPayment() against loaded ID error = %v", err)
	}
	if updated.Status != fee.StatusPaid {
		t.Errorf("status = %v, want paid", updated.Status)
	}
}

func TestCallerPaymentIDsNotTrusted(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := newLedger(t, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))

	supplied := id.NewPaymentID()
	for i := 0; i < 2; i++ {
		_, err := l.ApplyPayment(context.Background(), &payment.Payment{
			ID:     supplied,
			FeeID:  feeID,
			Amount: types.UGX(5000),
			Method: payment.MethodCash,
		})
		if err != nil {
			t.Fatalf("payment %d with caller-supplied ID error = %v", i+1, err)
		}
	}

	got, err := l.GetFee(context.Background(), feeID)
	if err != nil {
		t.Fatalf("GetFee() error = %v", err)
	}
	if got.PaidAmount.Amount != 10000 {
		t.Errorf("paid amount = %d, want 10000", got.PaidAmount.Amount)
	}

	history, err := l.ListPaymentsByFee(context.Background(), feeID)
	if err != nil {
		t.Fatalf("ListPaymentsByFee() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d payments, want 2", len(history))
	}
	if history[0].ID.String() == history[1].ID.String() {
		t.Error("engine assigned the same payment ID twice")
	}
	for i, p := range history {
		if p.ID.String() == supplied.String() {
			t.Errorf("history[%d] kept the caller-supplied ID", i)
		}
	}
}

func TestPaymentWriteFailureLeavesFeeUntouched(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	st := newFlakyStore()
	l := newLedgerWith(t, st, now)
	feeID := loadOne(t, l, 15000, 0, now.Add(30*24*time.Hour))
	before := snapshot(t, l)

	st.failCreatePayment = true
	if _, err := pay(l, feeID, 5000); err == nil {
		t.Fatal("ApplyPayment() succeeded with a failing history write")
	}

	after := snapshot(t, l)
	if !reflect.DeepEqual(before, after) {
		t.Error("failed payment write left the fee mutated")
	}

	history, err := l.ListPayments(context.Background(), account, payment.ListOpts{})
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history has %d payments after failed write, want 0", len(history))
	}
}

func TestFailedReloadRestoresPreviousRecords(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	st := newFlakyStore()
	l := newLedgerWith(t, st, now)
	due := now.Add(30 * 24 * time.Hour)

	previous := []*fee.Record{
		{ID: id.NewFeeID(), FeeType: "tuition", AcademicPeriod: "2026-T1", Amount: types.UGX(500000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "transport", AcademicPeriod: "2026-T1", Amount: types.UGX(120000), DueDate: due},
	}
	if err := l.LoadRecords(context.Background(), account, previous); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	before := snapshot(t, l)

	st.failReplaceAfter = 1
	batch := []*fee.Record{
		{ID: id.NewFeeID(), FeeType: "tuition", AcademicPeriod: "2026-T2", Amount: types.UGX(550000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "transport", AcademicPeriod: "2026-T2", Amount: types.UGX(130000), DueDate: due},
		{ID: id.NewFeeID(), FeeType: "meals", AcademicPeriod: "2026-T2", Amount: types.UGX(90000), DueDate: due},
	}
	if err := l.LoadRecords(context.Background(), account, batch); err == nil {
		t.Fatal("LoadRecords() succeeded with an interrupted replace")
	}

	after := snapshot(t, l)
	if !reflect.DeepEqual(before, after) {
		t.Error("interrupted reload left a partial record set")
	}
}

func TestDefaultCurrencyAppliedOnLoad(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	l := feeledger.New(memory.New(),
		feeledger.WithClock(func() time.Time { return now }),
		feeledger.WithDefaultCurrency("UGX"),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := l.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})

	records := []*fee.Record{
		{FeeType: "tuition", AcademicPeriod: "2026-T1", Amount: types.Money{Amount: 15000}, DueDate: now.Add(24 * time.Hour)},
	}
	if err := l.LoadRecords(context.Background(), account, records); err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}

	snap := snapshot(t, l)
	if got := snap.Records[0].Amount.Currency; got != "ugx" {
		t.Errorf("amount currency = %q, want %q", got, "ugx")
	}
	if got := snap.Records[0].PaidAmount.Currency; got != "ugx" {
		t.Errorf("paid amount currency = %q, want %q", got, "ugx")
	}
}
