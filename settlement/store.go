package settlement

import (
	"context"

	"github.com/xraph/streamledger/id"
)

// Store is the persistence interface for settlement receipts.
type Store interface {
	Append(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, receiptID id.ReceiptID) (*Receipt, error)
	ListByStream(ctx context.Context, streamID id.StreamID, opts ListOpts) ([]*Receipt, error)
}

// ListOpts pages receipt listings.
type ListOpts struct {
	// Start and End bound the receipt observation time (AtTime), unix
	// seconds inclusive. Zero means unbounded.
	Start  int64
	End    int64
	Limit  int
	Offset int
}
