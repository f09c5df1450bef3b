package extension

import (
	"time"

	streamledger "github.com/xraph/streamledger"
	"github.com/xraph/streamledger/plugin"
	"github.com/xraph/streamledger/store"
)

// Option configures the stream ledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the settlement engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a streamledger.Option through to the underlying engine.
func WithEngineOption(opt streamledger.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, streamledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxBatchSize caps the number of streams accepted by batch operations.
func WithMaxBatchSize(size int) Option {
	return func(e *Extension) { e.config.MaxBatchSize = size }
}

// WithLockStripes sets the number of per-stream lock stripes.
func WithLockStripes(n int) Option {
	return func(e *Extension) { e.config.LockStripes = n }
}

// WithNotifyBatchSize sets the number of receipt notifications to buffer before flushing.
func WithNotifyBatchSize(size int) Option {
	return func(e *Extension) { e.config.NotifyBatchSize = size }
}

// WithNotifyFlushInterval sets how frequently the receipt notification buffer is flushed.
func WithNotifyFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.NotifyFlushInterval = d }
}

// WithTransferProvider names the transfer provider consulted on each withdrawal.
func WithTransferProvider(name string) Option {
	return func(e *Extension) { e.config.TransferProvider = name }
}

// WithAttestationScheme names the attestation provider used by Attest.
func WithAttestationScheme(scheme string) Option {
	return func(e *Extension) { e.config.AttestationScheme = scheme }
}
