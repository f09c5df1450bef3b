package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/streamledger/batch"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onStreamCreated      []OnStreamCreated
	onStreamPaused       []OnStreamPaused
	onStreamResumed      []OnStreamResumed
	onStreamCancelled    []OnStreamCancelled
	onStreamSettled      []OnStreamSettled
	onWithdrawal         []OnWithdrawal
	onReceiptsFlushed    []OnReceiptsFlushed
	onOverflowDetected   []OnOverflowDetected
	onBatchValidated     []OnBatchValidated
	transferProviders    map[string]TransferProvider
	attestationProviders map[string]AttestationProvider
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:               slog.Default(),
		transferProviders:    make(map[string]TransferProvider),
		attestationProviders: make(map[string]AttestationProvider),
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
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
	}
	if v, ok := p.(OnStreamPaused); ok {
		r.onStreamPaused = append(r.onStreamPaused, v)
	}
	if v, ok := p.(OnStreamResumed); ok {
		r.onStreamResumed = append(r.onStreamResumed, v)
	}
	if v, ok := p.(OnStreamCancelled); ok {
		r.onStreamCancelled = append(r.onStreamCancelled, v)
	}
	if v, ok := p.(OnStreamSettled); ok {
		r.onStreamSettled = append(r.onStreamSettled, v)
	}
	if v, ok := p.(OnWithdrawal); ok {
		r.onWithdrawal = append(r.onWithdrawal, v)
	}
	if v, ok := p.(OnReceiptsFlushed); ok {
		r.onReceiptsFlushed = append(r.onReceiptsFlushed, v)
	}
	if v, ok := p.(OnOverflowDetected); ok {
		r.onOverflowDetected = append(r.onOverflowDetected, v)
	}
	if v, ok := p.(OnBatchValidated); ok {
		r.onBatchValidated = append(r.onBatchValidated, v)
	}
	if v, ok := p.(TransferProvider); ok {
		r.transferProviders[v.ProviderName()] = v
	}
	if v, ok := p.(AttestationProvider); ok {
		r.attestationProviders[v.SchemeName()] = v
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

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnStreamCreated)(nil)).Elem(), "OnStreamCreated")
	checkInterface(reflect.TypeOf((*OnStreamSettled)(nil)).Elem(), "OnStreamSettled")
	checkInterface(reflect.TypeOf((*OnWithdrawal)(nil)).Elem(), "OnWithdrawal")
	checkInterface(reflect.TypeOf((*OnBatchValidated)(nil)).Elem(), "OnBatchValidated")
	checkInterface(reflect.TypeOf((*OnOverflowDetected)(nil)).Elem(), "OnOverflowDetected")
	checkInterface(reflect.TypeOf((*TransferProvider)(nil)).Elem(), "TransferProvider")
	checkInterface(reflect.TypeOf((*AttestationProvider)(nil)).Elem(), "AttestationProvider")

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
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
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

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamCreated(ctx, s)
		}); err != nil {
			r.logger.Warn("plugin OnStreamCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamPaused emits a stream paused event.
func (r *Registry) EmitStreamPaused(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamPaused
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamPaused(ctx, s)
		}); err != nil {
			r.logger.Warn("plugin OnStreamPaused failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamResumed emits a stream resumed event.
func (r *Registry) EmitStreamResumed(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamResumed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamResumed(ctx, s)
		}); err != nil {
			r.logger.Warn("plugin OnStreamResumed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamCancelled emits a stream cancelled event.
func (r *Registry) EmitStreamCancelled(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamCancelled(ctx, s)
		}); err != nil {
			r.logger.Warn("plugin OnStreamCancelled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamSettled emits a stream fully settled event.
func (r *Registry) EmitStreamSettled(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamSettled(ctx, s)
		}); err != nil {
			r.logger.Warn("plugin OnStreamSettled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWithdrawal emits a settlement applied event.
func (r *Registry) EmitWithdrawal(ctx context.Context, s *stream.Stream, rcpt *settlement.Receipt) {
	r.mu.RLock()
	plugins := r.onWithdrawal
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWithdrawal(ctx, s, rcpt)
		}); err != nil {
			r.logger.Warn("plugin OnWithdrawal failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReceiptsFlushed emits a receipts flushed event.
func (r *Registry) EmitReceiptsFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onReceiptsFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReceiptsFlushed(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnReceiptsFlushed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOverflowDetected emits an overflow refusal event.
func (r *Registry) EmitOverflowDetected(ctx context.Context, streamID, op string, cause error) {
	r.mu.RLock()
	plugins := r.onOverflowDetected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOverflowDetected(ctx, streamID, op, cause)
		}); err != nil {
			r.logger.Warn("plugin OnOverflowDetected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBatchValidated emits a batch validated event.
func (r *Registry) EmitBatchValidated(ctx context.Context, size int, failures []*batch.Error) {
	r.mu.RLock()
	plugins := r.onBatchValidated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBatchValidated(ctx, size, failures)
		}); err != nil {
			r.logger.Warn("plugin OnBatchValidated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetTransferProvider returns a transfer provider by name.
func (r *Registry) GetTransferProvider(name string) TransferProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transferProviders[name]
}

// GetTransferProviders returns all registered transfer providers.
func (r *Registry) GetTransferProviders() []TransferProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]TransferProvider, 0, len(r.transferProviders))
	for _, p := range r.transferProviders {
		result = append(result, p)
	}
	return result
}

// GetAttestationProvider returns an attestation provider by scheme name.
func (r *Registry) GetAttestationProvider(scheme string) AttestationProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attestationProviders[scheme]
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the settlement pipeline.
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
