// Package memory provides an in-memory store implementation, primarily
// for tests and embedded use. It copies entities on every boundary so a
// caller mutating a returned stream cannot corrupt stored state before
// the mutation is explicitly persisted.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/streamledger"
	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
)

type Store struct {
	mu sync.RWMutex

	// Stream storage
	streams map[string]*stream.Stream

	// Receipt storage, append-ordered per stream
	receipts map[string]*settlement.Receipt
	byStream map[string][]string
}

func New() *Store {
	return &Store{
		streams:  make(map[string]*stream.Stream),
		receipts: make(map[string]*settlement.Receipt),
		byStream: make(map[string][]string),
	}
}

// Stream Store implementation

func (s *Store) CreateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[st.ID.String()]; exists {
		return streamledger.ErrAlreadyExists
	}
	s.streams[st.ID.String()] = st.Clone()
	return nil
}

func (s *Store) GetStream(_ context.Context, streamID id.StreamID) (*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[streamID.String()]; ok {
		return st.Clone(), nil
	}
	return nil, streamledger.ErrStreamNotFound
}

func (s *Store) ListStreams(_ context.Context, appID string, opts stream.ListOpts) ([]*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*stream.Stream, 0)
	for _, st := range s.streams {
		if appID != "" && st.AppID != appID {
			continue
		}
		if opts.Status != "" && st.Status != opts.Status {
			continue
		}
		if opts.Payer != "" && st.Payer != opts.Payer {
			continue
		}
		if opts.Payee != "" && st.Payee != opts.Payee {
			continue
		}
		result = append(result, st.Clone())
	}

	// Map iteration order is random; creation time then ID keeps listings
	// stable.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[st.ID.String()]; !exists {
		return streamledger.ErrStreamNotFound
	}
	s.streams[st.ID.String()] = st.Clone()
	return nil
}

// ApplySettlement persists the settled stream and its receipt under one
// lock acquisition, so a reader can never observe one without the other.
func (s *Store) ApplySettlement(_ context.Context, st *stream.Stream, r *settlement.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[st.ID.String()]; !exists {
		return streamledger.ErrStreamNotFound
	}
	if _, exists := s.receipts[r.ID.String()]; exists {
		return streamledger.ErrAlreadyExists
	}

	s.streams[st.ID.String()] = st.Clone()
	rc := *r
	s.receipts[r.ID.String()] = &rc
	s.byStream[st.ID.String()] = append(s.byStream[st.ID.String()], r.ID.String())
	return nil
}

// Receipt Store implementation

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*settlement.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.receipts[receiptID.String()]; ok {
		rc := *r
		return &rc, nil
	}
	return nil, streamledger.ErrReceiptNotFound
}

func (s *Store) ListReceipts(_ context.Context, streamID id.StreamID, opts settlement.ListOpts) ([]*settlement.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*settlement.Receipt, 0)
	for _, rid := range s.byStream[streamID.String()] {
		r := s.receipts[rid]
		if opts.Start != 0 && r.AtTime < opts.Start {
			continue
		}
		if opts.End != 0 && r.AtTime > opts.End {
			continue
		}
		rc := *r
		result = append(result, &rc)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

func paginate[T any](in []T, offset, limit int) []T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(in) {
		start = len(in)
	}
	end := start + limit
	if limit <= 0 || end > len(in) {
		end = len(in)
	}
	return in[start:end]
}
