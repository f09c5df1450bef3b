// Package extension provides the Forge extension adapter for the stream
// ledger.
//
// It implements the forge.Extension interface to integrate the
// settlement engine into a Forge application with automatic dependency
// discovery, DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.streamledger" or
// "streamledger" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	streamledger "github.com/xraph/streamledger"
	"github.com/xraph/streamledger/store"
	"github.com/xraph/streamledger/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "streamledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Streaming payment settlement accounting engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the stream ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *streamledger.Engine
	store      store.Store
	engineOpts []streamledger.Option
}

// New creates a new stream ledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine instance.
// This is nil until Register is called.
func (e *Extension) Engine() *streamledger.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the settlement engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := streamledger.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*streamledger.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("streamledger: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("streamledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs streamledger.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []streamledger.Option {
	opts := make([]streamledger.Option, 0, len(e.engineOpts)+5)

	if e.config.MaxBatchSize > 0 {
		opts = append(opts, streamledger.WithMaxBatchSize(e.config.MaxBatchSize))
	}
	if e.config.LockStripes > 0 {
		opts = append(opts, streamledger.WithLockStripes(e.config.LockStripes))
	}
	if e.config.NotifyBatchSize > 0 || e.config.NotifyFlushInterval > 0 {
		batchSize := e.config.NotifyBatchSize
		flushInterval := e.config.NotifyFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.NotifyBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.NotifyFlushInterval
		}
		opts = append(opts, streamledger.WithNotifyConfig(batchSize, flushInterval))
	}
	if e.config.TransferProvider != "" {
		opts = append(opts, streamledger.WithTransferProvider(e.config.TransferProvider))
	}
	if e.config.AttestationScheme != "" {
		opts = append(opts, streamledger.WithAttestationScheme(e.config.AttestationScheme))
	}
	if e.config.DisableMigrate {
		opts = append(opts, streamledger.WithDisableMigrate())
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("streamledger: configuration is required but not found in config files; " +
				"ensure 'extensions.streamledger' or 'streamledger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("streamledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("max_batch_size", e.config.MaxBatchSize),
		forge.F("lock_stripes", e.config.LockStripes),
		forge.F("notify_batch_size", e.config.NotifyBatchSize),
		forge.F("notify_flush_interval", e.config.NotifyFlushInterval),
		forge.F("transfer_provider", e.config.TransferProvider),
		forge.F("attestation_scheme", e.config.AttestationScheme),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.streamledger" first (namespaced pattern).
	if cm.IsSet("extensions.streamledger") {
		if err := cm.Bind("extensions.streamledger", &cfg); err == nil {
			e.Logger().Debug("streamledger: loaded config from file",
				forge.F("key", "extensions.streamledger"),
			)
			return cfg, true
		}
		e.Logger().Warn("streamledger: failed to bind extensions.streamledger config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "streamledger" key.
	if cm.IsSet("streamledger") {
		if err := cm.Bind("streamledger", &cfg); err == nil {
			e.Logger().Debug("streamledger: loaded config from file",
				forge.F("key", "streamledger"),
			)
			return cfg, true
		}
		e.Logger().Warn("streamledger: failed to bind streamledger config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}
	if cfg.LockStripes == 0 {
		cfg.LockStripes = defaults.LockStripes
	}
	if cfg.NotifyBatchSize == 0 {
		cfg.NotifyBatchSize = defaults.NotifyBatchSize
	}
	if cfg.NotifyFlushInterval == 0 {
		cfg.NotifyFlushInterval = defaults.NotifyFlushInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.TransferProvider == "" && programmaticConfig.TransferProvider != "" {
		yamlConfig.TransferProvider = programmaticConfig.TransferProvider
	}
	if yamlConfig.AttestationScheme == "" && programmaticConfig.AttestationScheme != "" {
		yamlConfig.AttestationScheme = programmaticConfig.AttestationScheme
	}
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.MaxBatchSize == 0 && programmaticConfig.MaxBatchSize != 0 {
		yamlConfig.MaxBatchSize = programmaticConfig.MaxBatchSize
	}
	if yamlConfig.LockStripes == 0 && programmaticConfig.LockStripes != 0 {
		yamlConfig.LockStripes = programmaticConfig.LockStripes
	}
	if yamlConfig.NotifyBatchSize == 0 && programmaticConfig.NotifyBatchSize != 0 {
		yamlConfig.NotifyBatchSize = programmaticConfig.NotifyBatchSize
	}
	if yamlConfig.NotifyFlushInterval == 0 && programmaticConfig.NotifyFlushInterval != 0 {
		yamlConfig.NotifyFlushInterval = programmaticConfig.NotifyFlushInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
