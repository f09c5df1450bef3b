package store

import (
	"context"

	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
)

// Store is the unified storage interface for all stream ledger entities.
// Instead of embedding the sub-interfaces, we explicitly declare all
// methods to avoid naming conflicts.
type Store interface {
	// Stream methods
	CreateStream(ctx context.Context, s *stream.Stream) error
	GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error)
	ListStreams(ctx context.Context, appID string, opts stream.ListOpts) ([]*stream.Stream, error)
	UpdateStream(ctx context.Context, s *stream.Stream) error

	// ApplySettlement persists an applied settlement atomically: the
	// stream's new settled amount and status together with the receipt.
	// Either both are durable or neither is.
	ApplySettlement(ctx context.Context, s *stream.Stream, r *settlement.Receipt) error

	// Receipt methods
	GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*settlement.Receipt, error)
	ListReceipts(ctx context.Context, streamID id.StreamID, opts settlement.ListOpts) ([]*settlement.Receipt, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
