// Package audithook bridges Ledger lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/payment"
	"github.com/xraph/feeledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnRecordsLoaded   = (*Extension)(nil)
	_ plugin.OnFeeSettled      = (*Extension)(nil)
	_ plugin.OnFeeOverdue      = (*Extension)(nil)
	_ plugin.OnPaymentApplied  = (*Extension)(nil)
	_ plugin.OnPaymentRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Record lifecycle hooks
// ──────────────────────────────────────────────────

// OnRecordsLoaded implements plugin.OnRecordsLoaded.
func (e *Extension) OnRecordsLoaded(ctx context.Context, accountID string, count int) error {
	return e.record(ctx, ActionRecordsLoaded, SeverityInfo, OutcomeSuccess,
		ResourceAccount, accountID, CategoryLedger, nil,
		"account_id", accountID,
		"record_count", count,
	)
}

// OnFeeSettled implements plugin.OnFeeSettled.
func (e *Extension) OnFeeSettled(ctx context.Context, record interface{}) error {
	return e.record(ctx, ActionFeeSettled, SeverityInfo, OutcomeSuccess,
		ResourceFee, feeID(record), CategoryLedger, nil,
		"event", "fee_settled",
	)
}

// OnFeeOverdue implements plugin.OnFeeOverdue.
func (e *Extension) OnFeeOverdue(ctx context.Context, record interface{}) error {
	return e.record(ctx, ActionFeeOverdue, SeverityWarning, OutcomeSuccess,
		ResourceFee, feeID(record), CategoryLedger, nil,
		"event", "fee_overdue",
	)
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentApplied implements plugin.OnPaymentApplied.
func (e *Extension) OnPaymentApplied(ctx context.Context, pmt interface{}, record interface{}) error {
	kv := []any{"event", "payment_applied", "fee_id", feeID(record)}
	if p, ok := pmt.(*payment.Payment); ok {
		kv = append(kv,
			"amount", p.Amount.Amount,
			"currency", p.Amount.Currency,
			"method", string(p.Method),
		)
		if p.Reference != "" {
			kv = append(kv, "reference", p.Reference)
		}
	}
	return e.record(ctx, ActionPaymentApplied, SeverityInfo, OutcomeSuccess,
		ResourcePayment, paymentID(pmt), CategoryPayment, nil, kv...)
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (e *Extension) OnPaymentRejected(ctx context.Context, pmt interface{}, reason error) error {
	kv := []any{"event", "payment_rejected"}
	if p, ok := pmt.(*payment.Payment); ok {
		if !p.FeeID.IsNil() {
			kv = append(kv, "fee_id", p.FeeID.String())
		}
		kv = append(kv, "amount", p.Amount.Amount, "currency", p.Amount.Currency)
	}
	return e.record(ctx, ActionPaymentRejected, SeverityWarning, OutcomeFailure,
		ResourcePayment, paymentID(pmt), CategoryPayment, reason, kv...)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func feeID(record interface{}) string {
	if r, ok := record.(*fee.Record); ok {
		return r.ID.String()
	}
	return ""
}

func paymentID(pmt interface{}) string {
	if p, ok := pmt.(*payment.Payment); ok && !p.ID.IsNil() {
		return p.ID.String()
	}
	return ""
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
