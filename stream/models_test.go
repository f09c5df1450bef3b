package stream

import (
	"errors"
	"testing"

	"github.com/xraph/streamledger/types"
)

func TestNewValidation(t *testing.T) {
	rate := types.MustAmount(100)

	tests := []struct {
		name    string
		payer   string
		payee   string
		rate    types.Amount
		start   int64
		end     int64
		wantErr error
	}{
		{"valid", "alice", "bob", rate, 1000, 2000, nil},
		{"zero rate", "alice", "bob", types.ZeroAmount(), 1000, 2000, ErrInvalidRate},
		{"empty payer", "", "bob", rate, 1000, 2000, ErrInvalidParty},
		{"empty payee", "alice", "", rate, 1000, 2000, ErrInvalidParty},
		{"self stream", "alice", "alice", rate, 1000, 2000, ErrInvalidParty},
		{"start equals end", "alice", "bob", rate, 1000, 1000, ErrInvalidWindow},
		{"start after end", "alice", "bob", rate, 2000, 1000, ErrInvalidWindow},
		{"negative start", "alice", "bob", rate, -1, 1000, ErrInvalidWindow},
		{"negative end", "alice", "bob", rate, 0, -5, ErrInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.payer, tt.payee, tt.rate, tt.start, tt.end)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if s.ID.IsNil() {
				t.Error("New() produced nil ID")
			}
			if s.Status != StatusActive {
				t.Errorf("Status = %q, want active", s.Status)
			}
			if !s.SettledAmount.IsZero() {
				t.Errorf("SettledAmount = %s, want 0", s.SettledAmount)
			}
		})
	}
}

func TestNewRejectsUnrepresentableCapacity(t *testing.T) {
	// Capacity would exceed MaxAmount; creation must fail, not defer the
	// overflow to the first settlement.
	_, err := New("alice", "bob", types.MaxAmount(), 0, 10)
	if !errors.Is(err, types.ErrAmountOverflow) {
		t.Fatalf("New() error = %v, want ErrAmountOverflow", err)
	}
}

func TestCapacityAndWithdrawable(t *testing.T) {
	s, err := New("alice", "bob", types.MustAmount(1_000_000_000_000_000), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}

	capacity, err := s.Capacity()
	if err != nil {
		t.Fatal(err)
	}
	if capacity.String() != "100000000000000000" {
		t.Errorf("Capacity = %s, want 100000000000000000", capacity)
	}

	due, err := s.WithdrawableAt(1050)
	if err != nil {
		t.Fatal(err)
	}
	if due.String() != "50000000000000000" {
		t.Errorf("WithdrawableAt(1050) = %s, want 50000000000000000", due)
	}
}

func TestWithdrawableClampsToZero(t *testing.T) {
	s, err := New("alice", "bob", types.MustAmount(10), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate settlement ahead of accrual (e.g. a stale observation time).
	s.SettledAmount = types.MustAmount(500)

	due, err := s.WithdrawableAt(1010)
	if err != nil {
		t.Fatal(err)
	}
	if !due.IsZero() {
		t.Errorf("WithdrawableAt = %s, want 0", due)
	}
}

func TestStatusAt(t *testing.T) {
	base := func() *Stream {
		s, err := New("alice", "bob", types.MustAmount(10), 1000, 1100)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := []struct {
		name  string
		setup func(*Stream)
		now   int64
		want  Status
	}{
		{"before window is active", nil, 500, StatusActive},
		{"inside window", nil, 1050, StatusActive},
		{"window elapsed unsettled", nil, 1100, StatusExpired},
		{"long after end", nil, 99999, StatusExpired},
		{
			"fully settled",
			func(s *Stream) { s.SettledAmount = types.MustAmount(1000) },
			1100, StatusSettled,
		},
		{
			"fully settled before end",
			func(s *Stream) { s.SettledAmount = types.MustAmount(1000) },
			1050, StatusSettled,
		},
		{
			"paused sticky",
			func(s *Stream) { s.Status = StatusPaused },
			99999, StatusPaused,
		},
		{
			"cancelled sticky",
			func(s *Stream) { s.Status = StatusCancelled },
			1050, StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			if tt.setup != nil {
				tt.setup(s)
			}
			got, err := s.StatusAt(tt.now)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("StatusAt(%d) = %q, want %q", tt.now, got, tt.want)
			}
		})
	}
}

func TestCheckInvariants(t *testing.T) {
	s, err := New("alice", "bob", types.MustAmount(10), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("fresh stream: %v", err)
	}

	s.SettledAmount = types.MustAmount(1001) // capacity is 1000
	if err := s.CheckInvariants(); !errors.Is(err, ErrInvariantBreach) {
		t.Fatalf("over-settled stream: error = %v, want ErrInvariantBreach", err)
	}
}

func TestClone(t *testing.T) {
	s, err := New("alice", "bob", types.MustAmount(10), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}
	s.Metadata = map[string]string{"purpose": "salary"}

	c := s.Clone()
	c.Metadata["purpose"] = "changed"
	c.SettledAmount = types.MustAmount(42)

	if s.Metadata["purpose"] != "salary" {
		t.Error("Clone shares metadata map")
	}
	if !s.SettledAmount.IsZero() {
		t.Error("Clone mutated original settled amount")
	}
}
