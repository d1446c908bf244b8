// Package plugin provides an extensible plugin system for Feeledger.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Fee record hooks
// ──────────────────────────────────────────────────

// OnRecordsLoaded is called after a bulk load replaces an account's records.
type OnRecordsLoaded interface {
	Plugin
	OnRecordsLoaded(ctx context.Context, accountID string, count int) error
}

// OnFeeSettled is called when a payment brings a fee to fully paid.
type OnFeeSettled interface {
	Plugin
	OnFeeSettled(ctx context.Context, record interface{}) error
}

// OnFeeOverdue is called when a status refresh moves a fee to overdue.
type OnFeeOverdue interface {
	Plugin
	OnFeeOverdue(ctx context.Context, record interface{}) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentApplied is called after a payment is accepted and the ledger
// updated. The record reflects the post-payment state.
type OnPaymentApplied interface {
	Plugin
	OnPaymentApplied(ctx context.Context, pmt interface{}, record interface{}) error
}

// OnPaymentRejected is called when a payment is refused. The ledger is
// unchanged when this fires.
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, pmt interface{}, reason error) error
}

// ──────────────────────────────────────────────────
// Receipt formatters
// ──────────────────────────────────────────────────

// ReceiptFormatter renders a payment receipt for export.
type ReceiptFormatter interface {
	Plugin
	Format() string                                                              // "pdf", "html", "csv", etc.
	Render(ctx context.Context, pmt interface{}, record interface{}, w interface{}) error // w is io.Writer
}
