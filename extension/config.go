package extension

import "time"

// Config holds the stream ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.streamledger" or
// "streamledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MaxBatchSize caps the number of streams accepted by batch
	// reconciliation operations (default: 1000).
	MaxBatchSize int `json:"max_batch_size" mapstructure:"max_batch_size" yaml:"max_batch_size"`

	// LockStripes is the number of per-stream lock stripes used to
	// serialize concurrent settlements (default: 64).
	LockStripes int `json:"lock_stripes" mapstructure:"lock_stripes" yaml:"lock_stripes"`

	// NotifyBatchSize is the number of receipt notifications to buffer
	// before flushing to plugins (default: 100).
	NotifyBatchSize int `json:"notify_batch_size" mapstructure:"notify_batch_size" yaml:"notify_batch_size"`

	// NotifyFlushInterval is how frequently the receipt notification
	// buffer is flushed even if the batch size has not been reached
	// (default: 5s).
	NotifyFlushInterval time.Duration `json:"notify_flush_interval" mapstructure:"notify_flush_interval" yaml:"notify_flush_interval"`

	// TransferProvider names the transfer provider consulted on each
	// withdrawal. Empty means accounting-only settlement.
	TransferProvider string `json:"transfer_provider" mapstructure:"transfer_provider" yaml:"transfer_provider"`

	// AttestationScheme names the attestation provider used by Attest.
	AttestationScheme string `json:"attestation_scheme" mapstructure:"attestation_scheme" yaml:"attestation_scheme"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// The store must still be constructed by the caller (postgres.New,
	// sqlite.New, mongo.New) and passed via WithStore; this field is
	// informational for deployments that wire stores at startup.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:        1000,
		LockStripes:         64,
		NotifyBatchSize:     100,
		NotifyFlushInterval: 5 * time.Second,
	}
}
