package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onRecordsLoaded   []OnRecordsLoaded
	onFeeSettled      []OnFeeSettled
	onFeeOverdue      []OnFeeOverdue
	onPaymentApplied  []OnPaymentApplied
	onPaymentRejected []OnPaymentRejected
	receiptFormatters map[string]ReceiptFormatter
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:            slog.Default(),
		receiptFormatters: make(map[string]ReceiptFormatter),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnRecordsLoaded); ok {
		r.onRecordsLoaded = append(r.onRecordsLoaded, v)
	}
	if v, ok := p.(OnFeeSettled); ok {
		r.onFeeSettled = append(r.onFeeSettled, v)
	}
	if v, ok := p.(OnFeeOverdue); ok {
		r.onFeeOverdue = append(r.onFeeOverdue, v)
	}
	if v, ok := p.(OnPaymentApplied); ok {
		r.onPaymentApplied = append(r.onPaymentApplied, v)
	}
	if v, ok := p.(OnPaymentRejected); ok {
		r.onPaymentRejected = append(r.onPaymentRejected, v)
	}
	if v, ok := p.(ReceiptFormatter); ok {
		r.receiptFormatters[v.Format()] = v
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnRecordsLoaded)(nil)).Elem(), "OnRecordsLoaded")
	checkInterface(reflect.TypeOf((*OnFeeSettled)(nil)).Elem(), "OnFeeSettled")
	checkInterface(reflect.TypeOf((*OnFeeOverdue)(nil)).Elem(), "OnFeeOverdue")
	checkInterface(reflect.TypeOf((*OnPaymentApplied)(nil)).Elem(), "OnPaymentApplied")
	checkInterface(reflect.TypeOf((*OnPaymentRejected)(nil)).Elem(), "OnPaymentRejected")
	checkInterface(reflect.TypeOf((*ReceiptFormatter)(nil)).Elem(), "ReceiptFormatter")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, ledger)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRecordsLoaded emits a records loaded event.
func (r *Registry) EmitRecordsLoaded(ctx context.Context, accountID string, count int) {
	r.mu.RLock()
	plugins := r.onRecordsLoaded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRecordsLoaded(ctx, accountID, count)
		}); err != nil {
			r.logger.Warn("plugin OnRecordsLoaded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeeSettled emits a fee settled event.
func (r *Registry) EmitFeeSettled(ctx context.Context, record interface{}) {
	r.mu.RLock()
	plugins := r.onFeeSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeeSettled(ctx, record)
		}); err != nil {
			r.logger.Warn("plugin OnFeeSettled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeeOverdue emits a fee overdue event.
func (r *Registry) EmitFeeOverdue(ctx context.Context, record interface{}) {
	r.mu.RLock()
	plugins := r.onFeeOverdue
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeeOverdue(ctx, record)
		}); err != nil {
			r.logger.Warn("plugin OnFeeOverdue failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentApplied emits a payment applied event.
func (r *Registry) EmitPaymentApplied(ctx context.Context, pmt interface{}, record interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentApplied(ctx, pmt, record)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRejected emits a payment rejected event.
func (r *Registry) EmitPaymentRejected(ctx context.Context, pmt interface{}, reason error) {
	r.mu.RLock()
	plugins := r.onPaymentRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRejected(ctx, pmt, reason)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetReceiptFormatter returns a receipt formatter by format name.
func (r *Registry) GetReceiptFormatter(format string) ReceiptFormatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.receiptFormatters[format]
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
