// Package observability provides a metrics extension for the fee ledger that
// records lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/feeledger/payment"
	"github.com/xraph/feeledger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnRecordsLoaded   = (*MetricsExtension)(nil)
	_ plugin.OnFeeSettled      = (*MetricsExtension)(nil)
	_ plugin.OnFeeOverdue      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentApplied  = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Ledger plugin to automatically track payment metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Record metrics
	RecordsLoaded Counter
	LoadBatchSize Histogram
	FeesSettled   Counter
	FeesOverdue   Counter

	// Payment metrics
	PaymentsApplied  Counter
	PaymentsRejected Counter
	PaymentAmount    Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Record metrics
		RecordsLoaded: factory.Counter("feeledger.records.loaded"),
		LoadBatchSize: factory.Histogram("feeledger.records.batch.size"),
		FeesSettled:   factory.Counter("feeledger.fee.settled"),
		FeesOverdue:   factory.Counter("feeledger.fee.overdue"),

		// Payment metrics
		PaymentsApplied:  factory.Counter("feeledger.payment.applied"),
		PaymentsRejected: factory.Counter("feeledger.payment.rejected"),
		PaymentAmount:    factory.Histogram("feeledger.payment.amount"),

		// Error metrics
		StoreErrors:  factory.Counter("feeledger.store.errors"),
		PluginErrors: factory.Counter("feeledger.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Record lifecycle hooks
// ──────────────────────────────────────────────────

// OnRecordsLoaded implements plugin.OnRecordsLoaded.
func (m *MetricsExtension) OnRecordsLoaded(_ context.Context, _ string, count int) error {
	m.RecordsLoaded.Add(float64(count))
	m.LoadBatchSize.Observe(float64(count))
	return nil
}

// OnFeeSettled implements plugin.OnFeeSettled.
func (m *MetricsExtension) OnFeeSettled(_ context.Context, _ interface{}) error {
	m.FeesSettled.Inc()
	return nil
}

// OnFeeOverdue implements plugin.OnFeeOverdue.
func (m *MetricsExtension) OnFeeOverdue(_ context.Context, _ interface{}) error {
	m.FeesOverdue.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentApplied implements plugin.OnPaymentApplied.
func (m *MetricsExtension) OnPaymentApplied(_ context.Context, pmt interface{}, _ interface{}) error {
	m.PaymentsApplied.Inc()
	if p, ok := pmt.(*payment.Payment); ok {
		m.PaymentAmount.Observe(float64(p.Amount.Amount))
	}
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _ interface{}, _ error) error {
	m.PaymentsRejected.Inc()
	return nil
}
