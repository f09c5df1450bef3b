package settlement

import (
	"errors"
	"testing"

	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

func newStream(t *testing.T) *stream.Stream {
	t.Helper()
	s, err := stream.New("alice", "bob", types.MustAmount(1_000_000_000_000_000), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestApplyFullWithdrawal(t *testing.T) {
	s := newStream(t)

	// At now=1050, 50 seconds have accrued.
	rcpt, err := Apply(s, Request{StreamID: s.ID, AtTime: 1050})
	if err != nil {
		t.Fatal(err)
	}

	const want = "50000000000000000"
	if rcpt.AmountTransferred.String() != want {
		t.Errorf("AmountTransferred = %s, want %s", rcpt.AmountTransferred, want)
	}
	if rcpt.NewSettledTotal.String() != want {
		t.Errorf("NewSettledTotal = %s, want %s", rcpt.NewSettledTotal, want)
	}
	if s.SettledAmount.String() != want {
		t.Errorf("SettledAmount = %s, want %s", s.SettledAmount, want)
	}
	if rcpt.StreamID != s.ID {
		t.Error("receipt references wrong stream")
	}
	if rcpt.ID.IsNil() {
		t.Error("receipt has nil ID")
	}
}

func TestApplyIdempotentAtSameTime(t *testing.T) {
	s := newStream(t)

	if _, err := Apply(s, Request{StreamID: s.ID, AtTime: 1050}); err != nil {
		t.Fatal(err)
	}
	before := s.SettledAmount

	_, err := Apply(s, Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, ErrNothingDue) {
		t.Fatalf("second withdrawal: error = %v, want ErrNothingDue", err)
	}
	if !s.SettledAmount.Equal(before) {
		t.Errorf("SettledAmount changed on failed withdrawal: %s -> %s", before, s.SettledAmount)
	}
}

func TestApplyPartialRequest(t *testing.T) {
	s := newStream(t)

	requested := types.MustAmount(1_000)
	rcpt, err := Apply(s, Request{StreamID: s.ID, RequestedAmount: &requested, AtTime: 1050})
	if err != nil {
		t.Fatal(err)
	}
	if !rcpt.AmountTransferred.Equal(requested) {
		t.Errorf("AmountTransferred = %s, want %s", rcpt.AmountTransferred, requested)
	}

	// Requesting more than is due caps at the due amount.
	huge := types.MustParseAmount("999999999999999999999999")
	rcpt, err = Apply(s, Request{StreamID: s.ID, RequestedAmount: &huge, AtTime: 1050})
	if err != nil {
		t.Fatal(err)
	}
	want := types.MustAmount(50_000_000_000_000_000 - 1_000)
	if !rcpt.AmountTransferred.Equal(want) {
		t.Errorf("capped AmountTransferred = %s, want %s", rcpt.AmountTransferred, want)
	}
}

func TestApplyBeforeStart(t *testing.T) {
	s := newStream(t)

	_, err := Apply(s, Request{StreamID: s.ID, AtTime: 999})
	if !errors.Is(err, ErrNothingDue) {
		t.Fatalf("withdrawal before start: error = %v, want ErrNothingDue", err)
	}
}

func TestApplySettlesExactlyAtCapacity(t *testing.T) {
	s := newStream(t)

	rcpt, err := Apply(s, Request{StreamID: s.ID, AtTime: 5000})
	if err != nil {
		t.Fatal(err)
	}

	capacity, err := s.Capacity()
	if err != nil {
		t.Fatal(err)
	}
	if !rcpt.NewSettledTotal.Equal(capacity) {
		t.Errorf("NewSettledTotal = %s, want capacity %s", rcpt.NewSettledTotal, capacity)
	}
	if s.Status != stream.StatusSettled {
		t.Errorf("Status = %q, want settled", s.Status)
	}

	// A repeat withdrawal at the same or a later time finds nothing due
	// and leaves the settled amount untouched.
	_, err = Apply(s, Request{StreamID: s.ID, AtTime: 5000})
	if !errors.Is(err, ErrNothingDue) {
		t.Fatalf("withdrawal from settled: error = %v, want ErrNothingDue", err)
	}
	_, err = Apply(s, Request{StreamID: s.ID, AtTime: 6000})
	if !errors.Is(err, ErrNothingDue) {
		t.Fatalf("later withdrawal from settled: error = %v, want ErrNothingDue", err)
	}
	if !s.SettledAmount.Equal(capacity) {
		t.Errorf("SettledAmount = %s after rejected withdrawals, want capacity %s", s.SettledAmount, capacity)
	}
}

func TestApplyPausedStream(t *testing.T) {
	s := newStream(t)
	if err := Pause(s); err != nil {
		t.Fatal(err)
	}

	_, err := Apply(s, Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, ErrStreamPaused) {
		t.Fatalf("withdrawal while paused: error = %v, want ErrStreamPaused", err)
	}
	if !s.SettledAmount.IsZero() {
		t.Errorf("SettledAmount mutated on rejected withdrawal: %s", s.SettledAmount)
	}
}

func TestPauseResumeAccrualContinues(t *testing.T) {
	s := newStream(t)

	if err := Pause(s); err != nil {
		t.Fatal(err)
	}
	if err := Resume(s); err != nil {
		t.Fatal(err)
	}

	// Elapsed time counts from the original start, not the resume time.
	rcpt, err := Apply(s, Request{StreamID: s.ID, AtTime: 1050})
	if err != nil {
		t.Fatal(err)
	}
	if rcpt.AmountTransferred.String() != "50000000000000000" {
		t.Errorf("AmountTransferred = %s, want 50000000000000000", rcpt.AmountTransferred)
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*stream.Stream) error
		op      func(*stream.Stream) error
		wantErr bool
	}{
		{"pause active", nil, Pause, false},
		{"resume paused", Pause, Resume, false},
		{"cancel active", nil, Cancel, false},
		{"cancel paused", Pause, Cancel, false},
		{"pause paused", Pause, Pause, true},
		{"resume active", nil, Resume, true},
		{"cancel cancelled", Cancel, Cancel, true},
		{"pause cancelled", Cancel, Pause, true},
		{"resume cancelled", Cancel, Resume, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStream(t)
			if tt.prepare != nil {
				if err := tt.prepare(s); err != nil {
					t.Fatal(err)
				}
			}

			err := tt.op(s)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("error = %v, want ErrInvalidTransition", err)
				}
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatal("error does not carry TransitionError detail")
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCancelStrandsUnsettledValue(t *testing.T) {
	s := newStream(t)

	if err := Cancel(s); err != nil {
		t.Fatal(err)
	}
	if !s.SettledAmount.IsZero() {
		t.Errorf("cancel auto-settled %s", s.SettledAmount)
	}

	_, err := Apply(s, Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("withdrawal from cancelled: error = %v, want ErrInvalidTransition", err)
	}
}

func TestApplyRejectsCorruptedStream(t *testing.T) {
	s := newStream(t)
	capacity, err := s.Capacity()
	if err != nil {
		t.Fatal(err)
	}
	over, err := capacity.Add(types.MustAmount(1))
	if err != nil {
		t.Fatal(err)
	}
	s.SettledAmount = over

	_, err = Apply(s, Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, stream.ErrInvariantBreach) {
		t.Fatalf("corrupted stream: error = %v, want ErrInvariantBreach", err)
	}
}

func TestMonotonicSettlementSequence(t *testing.T) {
	s := newStream(t)
	capacity, err := s.Capacity()
	if err != nil {
		t.Fatal(err)
	}

	prev := types.ZeroAmount()
	for _, now := range []int64{1010, 1010, 1025, 1050, 1099, 1100, 2000} {
		_, err := Apply(s, Request{StreamID: s.ID, AtTime: now})
		if err != nil && !errors.Is(err, ErrNothingDue) {
			t.Fatalf("now=%d: %v", now, err)
		}
		if s.SettledAmount.LessThan(prev) {
			t.Fatalf("now=%d: settled decreased %s -> %s", now, prev, s.SettledAmount)
		}
		if capacity.LessThan(s.SettledAmount) {
			t.Fatalf("now=%d: settled %s exceeds capacity %s", now, s.SettledAmount, capacity)
		}
		prev = s.SettledAmount
	}

	if !s.SettledAmount.Equal(capacity) {
		t.Errorf("final settled = %s, want capacity %s", s.SettledAmount, capacity)
	}
}

func TestConservation(t *testing.T) {
	s := newStream(t)

	for _, now := range []int64{900, 1000, 1025, 1050, 1100, 3000} {
		flowed, err := s.FlowedAt(now)
		if err != nil {
			t.Fatal(err)
		}
		due, err := Withdrawable(s, now)
		if err != nil {
			t.Fatal(err)
		}
		total, err := due.Add(s.SettledAmount)
		if err != nil {
			t.Fatal(err)
		}
		if !total.Equal(flowed) {
			t.Errorf("now=%d: withdrawable %s + settled %s != flowed %s", now, due, s.SettledAmount, flowed)
		}

		// Advance actual settlement partway through the walk.
		if now == 1025 {
			if _, err := Apply(s, Request{StreamID: s.ID, AtTime: now}); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestSignals(t *testing.T) {
	s := newStream(t)

	sig, err := Signals(s, 1050)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Withdrawable.String() != "50000000000000000" {
		t.Errorf("Withdrawable = %s, want 50000000000000000", sig.Withdrawable)
	}
	if sig.AtTime != 1050 || sig.StartTime != 1000 || sig.EndTime != 1100 {
		t.Errorf("window signals = (%d, %d, %d)", sig.StartTime, sig.EndTime, sig.AtTime)
	}
	if !sig.SettledAmount.IsZero() {
		t.Errorf("SettledAmount = %s, want 0", sig.SettledAmount)
	}
}
