package batch

import (
	"errors"
	"testing"

	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

func mustStream(t *testing.T, payer, payee string, rate int64, start, end int64) *stream.Stream {
	t.Helper()
	s, err := stream.New(payer, payee, types.MustAmount(rate), start, end)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestValidateCollectsAllFailures(t *testing.T) {
	good1 := mustStream(t, "alice", "bob", 100, 1000, 2000)
	good2 := mustStream(t, "carol", "dave", 5, 0, 60)

	// Build the bad one by hand: New would reject it.
	bad := good1.Clone()
	bad.Payee = bad.Payer

	errs := Validate([]*stream.Stream{good1, bad, good2}, 0)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Index != 1 {
		t.Errorf("Index = %d, want 1", errs[0].Index)
	}
	if !errors.Is(errs[0], stream.ErrInvalidParty) {
		t.Errorf("error = %v, want ErrInvalidParty", errs[0])
	}
}

func TestValidateFlagsZeroRateByIndex(t *testing.T) {
	good1 := mustStream(t, "alice", "bob", 100, 1000, 2000)
	good2 := mustStream(t, "carol", "dave", 5, 0, 60)

	// Build the bad one by hand: New would reject a zero rate.
	bad := good1.Clone()
	bad.RatePerSecond = types.ZeroAmount()

	errs := Validate([]*stream.Stream{good1, bad, good2}, 0)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Index != 1 {
		t.Errorf("Index = %d, want 1", errs[0].Index)
	}
	if !errors.Is(errs[0], stream.ErrInvalidRate) {
		t.Errorf("error = %v, want ErrInvalidRate", errs[0])
	}
}

func TestValidateMultipleFailures(t *testing.T) {
	good := mustStream(t, "alice", "bob", 100, 1000, 2000)

	selfPay := good.Clone()
	selfPay.Payer = selfPay.Payee

	overSettled := mustStream(t, "erin", "frank", 10, 1000, 1100)
	overSettled.SettledAmount = types.MustAmount(5000) // capacity is 1000

	errs := Validate([]*stream.Stream{selfPay, good, overSettled, nil}, 0)
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	wantIdx := []int{0, 2, 3}
	for i, e := range errs {
		if e.Index != wantIdx[i] {
			t.Errorf("errs[%d].Index = %d, want %d", i, e.Index, wantIdx[i])
		}
	}
	if !errors.Is(errs[1], stream.ErrInvariantBreach) {
		t.Errorf("errs[1] = %v, want ErrInvariantBreach", errs[1])
	}
}

func TestValidateEmptyAndOversized(t *testing.T) {
	errs := Validate(nil, 0)
	if len(errs) != 1 || !errors.Is(errs[0], ErrBatchEmpty) {
		t.Fatalf("empty batch: %v", errs)
	}

	streams := []*stream.Stream{
		mustStream(t, "alice", "bob", 1, 0, 10),
		mustStream(t, "carol", "dave", 1, 0, 10),
		mustStream(t, "erin", "frank", 1, 0, 10),
	}
	errs = Validate(streams, 2)
	if len(errs) != 1 || !errors.Is(errs[0], ErrBatchTooLarge) {
		t.Fatalf("oversized batch: %v", errs)
	}

	if errs := Validate(streams, 3); len(errs) != 0 {
		t.Fatalf("batch at exactly max size: %v", errs)
	}
}

func TestAggregateCapacity(t *testing.T) {
	streams := []*stream.Stream{
		mustStream(t, "alice", "bob", 100, 1000, 2000),  // 100_000
		mustStream(t, "carol", "dave", 5, 0, 60),        // 300
		mustStream(t, "erin", "frank", 7, 100, 100_100), // 700_000
	}

	total, err := AggregateCapacity(streams)
	if err != nil {
		t.Fatal(err)
	}
	if total.String() != "800300" {
		t.Errorf("AggregateCapacity = %s, want 800300", total)
	}
}

func TestAggregateCapacityOverflow(t *testing.T) {
	near := mustStream(t, "alice", "bob", 1, 0, 1)
	near.RatePerSecond = types.MaxAmount() // capacity == MaxAmount
	other := mustStream(t, "carol", "dave", 1, 0, 1)

	_, err := AggregateCapacity([]*stream.Stream{near, other})
	if !errors.Is(err, types.ErrAmountOverflow) {
		t.Fatalf("error = %v, want ErrAmountOverflow", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.Index != 1 {
		t.Fatalf("error does not name the offending index: %v", err)
	}

	if _, err := AggregateCapacity(nil); !errors.Is(err, ErrBatchEmpty) {
		t.Fatalf("empty: error = %v, want ErrBatchEmpty", err)
	}
}

func TestAggregateSettled(t *testing.T) {
	a := mustStream(t, "alice", "bob", 100, 1000, 2000)
	a.SettledAmount = types.MustAmount(250)
	b := mustStream(t, "carol", "dave", 5, 0, 60)
	b.SettledAmount = types.MustAmount(50)

	total, err := AggregateSettled([]*stream.Stream{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if total.String() != "300" {
		t.Errorf("AggregateSettled = %s, want 300", total)
	}
}

func TestGroupByStableOrder(t *testing.T) {
	s1 := mustStream(t, "alice", "bob", 1, 0, 10)
	s2 := mustStream(t, "carol", "bob", 1, 0, 10)
	s3 := mustStream(t, "alice", "dave", 1, 0, 10)
	s4 := mustStream(t, "alice", "bob", 2, 0, 10)
	in := []*stream.Stream{s1, s2, s3, s4}

	groups := GroupBy(in, ByPayer)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Key != "alice" || groups[1].Key != "carol" {
		t.Errorf("group order = [%s, %s], want [alice, carol]", groups[0].Key, groups[1].Key)
	}
	if len(groups[0].Streams) != 3 || groups[0].Streams[0] != s1 || groups[0].Streams[1] != s3 || groups[0].Streams[2] != s4 {
		t.Error("alice group lost input order")
	}

	// Repeat runs over the same input must produce identical grouping.
	again := GroupBy(in, ByPayer)
	for i := range groups {
		if again[i].Key != groups[i].Key || len(again[i].Streams) != len(groups[i].Streams) {
			t.Fatal("GroupBy is not deterministic")
		}
	}

	byPayee := GroupBy(in, ByPayee)
	if byPayee[0].Key != "bob" || byPayee[1].Key != "dave" {
		t.Errorf("payee group order = [%s, %s], want [bob, dave]", byPayee[0].Key, byPayee[1].Key)
	}
}
