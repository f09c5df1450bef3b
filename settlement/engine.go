package settlement

import (
	"errors"
	"fmt"

	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

// State errors. All are recoverable and leave the stream unchanged.
var (
	// ErrNothingDue is returned by a withdrawal when no value is currently
	// withdrawable.
	ErrNothingDue = errors.New("settlement: nothing due")

	// ErrStreamPaused is returned by a withdrawal against a paused stream.
	ErrStreamPaused = errors.New("settlement: stream paused")

	// ErrInvalidTransition is returned for a lifecycle operation that is
	// not legal from the stream's current state. Use errors.As with
	// *TransitionError to recover the attempted transition.
	ErrInvalidTransition = errors.New("settlement: invalid transition")
)

// TransitionError describes an illegal state transition.
type TransitionError struct {
	From stream.Status
	To   stream.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("settlement: invalid transition from %s to %s", e.From, e.To)
}

// Unwrap makes the error match ErrInvalidTransition under errors.Is.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func invalidTransition(from, to stream.Status) error {
	return &TransitionError{From: from, To: to}
}

// Withdrawable returns the value that can be withdrawn from the stream at
// now. It never fails for a stream that passed creation validation; when
// nothing is due it returns zero rather than erroring.
func Withdrawable(s *stream.Stream, now int64) (types.Amount, error) {
	return s.WithdrawableAt(now)
}

// Apply validates a settlement request against the stream and, on success,
// mutates the stream's settled amount and returns a receipt. On any error
// the stream is left exactly as it was.
//
// A fully settled stream has nothing left to withdraw and reports
// ErrNothingDue like any other empty withdrawal; only a cancelled stream
// rejects with an invalid transition.
//
// The post-condition settled <= capacity is asserted before the mutation is
// committed; a violation surfaces as stream.ErrInvariantBreach, which
// signals corrupted input or an arithmetic bug, never a user error.
func Apply(s *stream.Stream, req Request) (*Receipt, error) {
	if s.Status == stream.StatusPaused {
		return nil, ErrStreamPaused
	}
	if s.Status == stream.StatusCancelled {
		return nil, invalidTransition(s.Status, stream.StatusSettled)
	}
	if err := s.CheckInvariants(); err != nil {
		return nil, err
	}

	due, err := Withdrawable(s, req.AtTime)
	if err != nil {
		return nil, err
	}

	amount := due
	if req.RequestedAmount != nil {
		amount = req.RequestedAmount.Min(due)
	}
	if amount.IsZero() {
		return nil, ErrNothingDue
	}

	newSettled, err := s.SettledAmount.Add(amount)
	if err != nil {
		return nil, err
	}

	capacity, err := s.Capacity()
	if err != nil {
		return nil, err
	}
	if capacity.LessThan(newSettled) {
		return nil, fmt.Errorf("%w: settlement would raise settled to %s above capacity %s",
			stream.ErrInvariantBreach, newSettled, capacity)
	}

	s.SettledAmount = newSettled
	if newSettled.Equal(capacity) {
		s.Status = stream.StatusSettled
	}
	s.Touch()

	return &Receipt{
		Entity:            types.NewEntity(),
		ID:                id.NewReceiptID(),
		StreamID:          s.ID,
		Payer:             s.Payer,
		Payee:             s.Payee,
		AmountTransferred: amount,
		NewSettledTotal:   newSettled,
		AtTime:            req.AtTime,
		AppID:             s.AppID,
	}, nil
}

// Pause suspends withdrawals. Legal only from active.
func Pause(s *stream.Stream) error {
	if s.Status != stream.StatusActive {
		return invalidTransition(s.Status, stream.StatusPaused)
	}
	s.Status = stream.StatusPaused
	s.Touch()
	return nil
}

// Resume lifts a pause. Legal only from paused. Accrual was never
// interrupted: elapsed time keeps counting from the original start.
func Resume(s *stream.Stream) error {
	if s.Status != stream.StatusPaused {
		return invalidTransition(s.Status, stream.StatusActive)
	}
	s.Status = stream.StatusActive
	s.Touch()
	return nil
}

// Cancel terminates the stream irrevocably. Legal from active or paused.
// Flowed-but-unsettled value becomes permanently unclaimable; there is no
// auto-settle on cancel.
func Cancel(s *stream.Stream) error {
	if s.Status != stream.StatusActive && s.Status != stream.StatusPaused {
		return invalidTransition(s.Status, stream.StatusCancelled)
	}
	s.Status = stream.StatusCancelled
	s.Touch()
	return nil
}

// Signals derives the public attestation signals for the stream observed
// at now.
func Signals(s *stream.Stream, now int64) (*PublicSignals, error) {
	due, err := Withdrawable(s, now)
	if err != nil {
		return nil, err
	}
	return &PublicSignals{
		RatePerSecond: s.RatePerSecond,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		AtTime:        now,
		SettledAmount: s.SettledAmount,
		Withdrawable:  due,
	}, nil
}
