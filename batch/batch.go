// Package batch reconciles groups of payment streams: validating every
// member, summing aggregate capacity with overflow checking, and grouping
// streams by payer or payee for per-party reporting.
package batch

import (
	"errors"
	"fmt"

	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

var (
	// ErrBatchEmpty is returned when a batch operation receives no streams.
	ErrBatchEmpty = errors.New("batch: empty batch")

	// ErrBatchTooLarge is returned when a batch exceeds the configured
	// maximum size.
	ErrBatchTooLarge = errors.New("batch: too large")
)

// Error ties a validation failure to the position of the offending stream
// in the input slice.
type Error struct {
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("batch: stream %d: %v", e.Index, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validate checks every stream in the batch and collects all failures
// rather than stopping at the first. maxSize of zero means unbounded. The
// returned slice preserves input order; an empty result means the batch is
// valid.
//
// Size violations are reported alone: a too-large batch is rejected before
// any per-stream work.
func Validate(streams []*stream.Stream, maxSize int) []*Error {
	if len(streams) == 0 {
		return []*Error{{Index: -1, Err: ErrBatchEmpty}}
	}
	if maxSize > 0 && len(streams) > maxSize {
		return []*Error{{Index: -1, Err: fmt.Errorf("%w: %d streams, max %d", ErrBatchTooLarge, len(streams), maxSize)}}
	}

	var errs []*Error
	for i, s := range streams {
		if s == nil {
			errs = append(errs, &Error{Index: i, Err: errors.New("nil stream")})
			continue
		}
		if err := stream.Validate(s.Payer, s.Payee, s.RatePerSecond, s.StartTime, s.EndTime); err != nil {
			errs = append(errs, &Error{Index: i, Err: err})
			continue
		}
		if err := s.CheckInvariants(); err != nil {
			errs = append(errs, &Error{Index: i, Err: err})
		}
	}
	return errs
}

// AggregateCapacity sums the total capacity of all streams in the batch
// with the same overflow discipline as single-stream arithmetic. A single
// unrepresentable capacity, or an unrepresentable sum, fails the whole
// aggregation.
func AggregateCapacity(streams []*stream.Stream) (types.Amount, error) {
	if len(streams) == 0 {
		return types.ZeroAmount(), ErrBatchEmpty
	}

	total := types.ZeroAmount()
	for i, s := range streams {
		capacity, err := s.Capacity()
		if err != nil {
			return types.ZeroAmount(), &Error{Index: i, Err: err}
		}
		total, err = total.Add(capacity)
		if err != nil {
			return types.ZeroAmount(), &Error{Index: i, Err: err}
		}
	}
	return total, nil
}

// AggregateSettled sums the settled amounts across the batch. Settled
// amounts are bounded by capacities, so this can only overflow if the
// capacity aggregate would too.
func AggregateSettled(streams []*stream.Stream) (types.Amount, error) {
	if len(streams) == 0 {
		return types.ZeroAmount(), ErrBatchEmpty
	}

	total := types.ZeroAmount()
	for i, s := range streams {
		var err error
		total, err = total.Add(s.SettledAmount)
		if err != nil {
			return types.ZeroAmount(), &Error{Index: i, Err: err}
		}
	}
	return total, nil
}

// Key selects the grouping dimension for GroupBy.
type Key func(*stream.Stream) string

// ByPayer groups streams by their paying party.
func ByPayer(s *stream.Stream) string { return s.Payer }

// ByPayee groups streams by their receiving party.
func ByPayee(s *stream.Stream) string { return s.Payee }

// Group is one bucket of a GroupBy result.
type Group struct {
	Key     string
	Streams []*stream.Stream
}

// GroupBy partitions the batch by the given key. Groups are ordered by
// first appearance of their key in the input, and streams within a group
// keep their relative input order, so equal inputs always produce equal
// output.
func GroupBy(streams []*stream.Stream, key Key) []Group {
	index := make(map[string]int, len(streams))
	var groups []Group
	for _, s := range streams {
		k := key(s)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Streams = append(groups[i].Streams, s)
	}
	return groups
}
