// Package plugin provides an extensible plugin system for the stream
// ledger. Plugins hook into stream lifecycle and settlement events to
// extend functionality.
package plugin

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/streamledger/batch"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

// Errors a TransferProvider may return. Providers should wrap these so
// the engine and callers can distinguish an allowance problem from a
// transport failure.
var (
	ErrInsufficientAllowance = errors.New("plugin: insufficient allowance")
	ErrTransferFailed        = errors.New("plugin: transfer failed")
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
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called when a new stream is opened.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, s *stream.Stream) error
}

// OnStreamPaused is called when a stream is paused.
type OnStreamPaused interface {
	Plugin
	OnStreamPaused(ctx context.Context, s *stream.Stream) error
}

// OnStreamResumed is called when a paused stream is resumed.
type OnStreamResumed interface {
	Plugin
	OnStreamResumed(ctx context.Context, s *stream.Stream) error
}

// OnStreamCancelled is called when a stream is cancelled.
type OnStreamCancelled interface {
	Plugin
	OnStreamCancelled(ctx context.Context, s *stream.Stream) error
}

// OnStreamSettled is called when a stream reaches full settlement.
type OnStreamSettled interface {
	Plugin
	OnStreamSettled(ctx context.Context, s *stream.Stream) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnWithdrawal is called after a settlement has been applied and
// persisted.
type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, s *stream.Stream, r *settlement.Receipt) error
}

// OnReceiptsFlushed is called when buffered receipt notifications are
// flushed.
type OnReceiptsFlushed interface {
	Plugin
	OnReceiptsFlushed(ctx context.Context, count int, elapsed time.Duration) error
}

// OnOverflowDetected is called when an arithmetic operation was refused
// because the result would exceed the representable range. These events
// always indicate misconfigured streams, never data corruption.
type OnOverflowDetected interface {
	Plugin
	OnOverflowDetected(ctx context.Context, streamID string, op string, err error) error
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnBatchValidated is called after a batch validation pass, whether or
// not it found failures.
type OnBatchValidated interface {
	Plugin
	OnBatchValidated(ctx context.Context, size int, failures []*batch.Error) error
}

// ──────────────────────────────────────────────────
// Transfer providers
// ──────────────────────────────────────────────────

// TransferProvider executes the value movement behind a settlement.
// Exactly one provider may be consulted per withdrawal; an error aborts
// the settlement before any state is persisted.
type TransferProvider interface {
	Plugin
	ProviderName() string
	Transfer(ctx context.Context, payer, payee string, amount types.Amount) error
}

// ──────────────────────────────────────────────────
// Attestation providers
// ──────────────────────────────────────────────────

// AttestationProvider produces a verifiable attestation over the public
// signals of a settlement.
type AttestationProvider interface {
	Plugin
	SchemeName() string
	Attest(ctx context.Context, signals *settlement.PublicSignals) ([]byte, error)
}
