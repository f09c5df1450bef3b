// Package stream defines the payment stream entity: a unidirectional,
// time-bounded, constant-rate value flow from a payer to a payee, together
// with its validation rules and status classification.
package stream

import (
	"errors"
	"fmt"

	"github.com/xraph/streamledger/flow"
	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/types"
)

// Status is the lifecycle state of a stream.
type Status string

const (
	// StatusActive streams accrue value and accept withdrawals.
	StatusActive Status = "active"
	// StatusPaused streams accrue value but reject withdrawals until resumed.
	StatusPaused Status = "paused"
	// StatusSettled streams have had their full capacity withdrawn. Terminal.
	StatusSettled Status = "settled"
	// StatusCancelled streams were terminated by an explicit cancel; any
	// flowed-but-unsettled value is permanently unclaimable. Terminal.
	StatusCancelled Status = "cancelled"
	// StatusExpired is a query-time classification, never stored: an active
	// stream whose window has fully elapsed without the capacity being
	// fully settled. Remaining value can still be withdrawn.
	StatusExpired Status = "expired"
)

// Validation errors.
var (
	// ErrInvalidRate is returned when the per-second rate is not positive.
	ErrInvalidRate = errors.New("stream: rate must be positive")

	// ErrInvalidWindow is returned when start >= end or either timestamp
	// is negative.
	ErrInvalidWindow = errors.New("stream: invalid time window")

	// ErrInvalidParty is returned when a payer or payee identity is
	// empty, or when payer and payee are the same party.
	ErrInvalidParty = errors.New("stream: invalid party")

	// ErrInvariantBreach indicates corrupted stream state (for example a
	// settled amount above capacity). It signals a bug upstream, never bad
	// user input, and must abort the operation rather than be repaired.
	ErrInvariantBreach = errors.New("stream: invariant breach")
)

// Stream represents one payment stream. The settled amount only ever grows,
// and never beyond the stream's total capacity.
type Stream struct {
	types.Entity
	ID            id.StreamID       `json:"id"`
	Payer         string            `json:"payer"`
	Payee         string            `json:"payee"`
	RatePerSecond types.Amount      `json:"rate_per_second"`
	StartTime     int64             `json:"start_time"`
	EndTime       int64             `json:"end_time"`
	SettledAmount types.Amount      `json:"settled_amount"`
	Status        Status            `json:"status"`
	AppID         string            `json:"app_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Validate checks the construction parameters of a stream without building
// one. All checks are performed; the first failure is returned.
func Validate(payer, payee string, rate types.Amount, start, end int64) error {
	if payer == "" || payee == "" {
		return fmt.Errorf("%w: payer and payee must be non-empty", ErrInvalidParty)
	}
	if payer == payee {
		return fmt.Errorf("%w: payer and payee are the same identity", ErrInvalidParty)
	}
	if !rate.IsPositive() {
		return ErrInvalidRate
	}
	if start < 0 || end < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidWindow)
	}
	if start >= end {
		return fmt.Errorf("%w: start %d >= end %d", ErrInvalidWindow, start, end)
	}
	return nil
}

// New validates the parameters and builds a Stream with a fresh ID, zero
// settled amount, and active status. The capacity is computed once here so
// that a stream whose rate*duration exceeds the representable range is
// rejected at creation rather than at first settlement.
func New(payer, payee string, rate types.Amount, start, end int64) (*Stream, error) {
	if err := Validate(payer, payee, rate, start, end); err != nil {
		return nil, err
	}
	if _, err := flow.Capacity(rate, start, end); err != nil {
		return nil, err
	}

	return &Stream{
		Entity:        types.NewEntity(),
		ID:            id.NewStreamID(),
		Payer:         payer,
		Payee:         payee,
		RatePerSecond: rate,
		StartTime:     start,
		EndTime:       end,
		SettledAmount: types.ZeroAmount(),
		Status:        StatusActive,
	}, nil
}

// Capacity returns the maximum value the stream can ever settle.
func (s *Stream) Capacity() (types.Amount, error) {
	return flow.Capacity(s.RatePerSecond, s.StartTime, s.EndTime)
}

// FlowedAt returns the value accrued by the stream at now. Paused time is
// not excluded: the elapsed-time window always runs from the original
// start, which keeps the model free of pause-tracking timestamps.
func (s *Stream) FlowedAt(now int64) (types.Amount, error) {
	return flow.Flowed(s.RatePerSecond, s.StartTime, s.EndTime, now)
}

// WithdrawableAt returns the accrued-but-unsettled value at now, clamped
// to zero. It never errors for a stream that passed creation validation:
// the only arithmetic it performs was already bounds-checked by New.
func (s *Stream) WithdrawableAt(now int64) (types.Amount, error) {
	flowed, err := s.FlowedAt(now)
	if err != nil {
		return types.Amount{}, err
	}
	return flowed.SubClamped(s.SettledAmount), nil
}

// StatusAt classifies the stream at now. The classification is
// non-overlapping: cancelled and paused are sticky stored states, settled
// means the full capacity was withdrawn, expired means the window elapsed
// with capacity left unsettled, and everything else is active — including
// streams whose window has not started yet.
func (s *Stream) StatusAt(now int64) (Status, error) {
	switch s.Status {
	case StatusCancelled:
		return StatusCancelled, nil
	case StatusPaused:
		return StatusPaused, nil
	}

	capacity, err := s.Capacity()
	if err != nil {
		return "", err
	}
	if s.SettledAmount.Equal(capacity) {
		return StatusSettled, nil
	}
	if now >= s.EndTime {
		return StatusExpired, nil
	}
	return StatusActive, nil
}

// IsTerminal reports whether the stored status admits no further mutation.
func (s *Stream) IsTerminal() bool {
	return s.Status == StatusSettled || s.Status == StatusCancelled
}

// CheckInvariants verifies the structural invariants that must hold after
// every operation. A violation means the stream was corrupted upstream.
func (s *Stream) CheckInvariants() error {
	if err := Validate(s.Payer, s.Payee, s.RatePerSecond, s.StartTime, s.EndTime); err != nil {
		return fmt.Errorf("%w: %v", ErrInvariantBreach, err)
	}
	capacity, err := s.Capacity()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvariantBreach, err)
	}
	if capacity.LessThan(s.SettledAmount) {
		return fmt.Errorf("%w: settled %s exceeds capacity %s",
			ErrInvariantBreach, s.SettledAmount, capacity)
	}
	return nil
}

// Clone returns a deep copy of the stream. Amounts are immutable values,
// so only the metadata map needs copying.
func (s *Stream) Clone() *Stream {
	out := *s
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
