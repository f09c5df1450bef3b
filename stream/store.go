package stream

import (
	"context"

	"github.com/xraph/streamledger/id"
)

// Store is the persistence interface for streams.
type Store interface {
	Create(ctx context.Context, s *Stream) error
	Get(ctx context.Context, streamID id.StreamID) (*Stream, error)
	List(ctx context.Context, appID string, opts ListOpts) ([]*Stream, error)
	Update(ctx context.Context, s *Stream) error
}

// ListOpts filters and pages stream listings.
type ListOpts struct {
	Status Status
	Payer  string
	Payee  string
	Limit  int
	Offset int
}
