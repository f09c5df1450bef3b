package streamledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/streamledger"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/store/memory"
	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

func newEngine(t *testing.T, opts ...streamledger.Option) *streamledger.Engine {
	t.Helper()
	e := streamledger.New(memory.New(), opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := e.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return e
}

func TestEngineWithdrawFlow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	rate := streamledger.MustAmount(1_000_000_000_000_000)
	s, err := e.CreateStream(ctx, "alice", "bob", rate, 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}

	due, err := e.WithdrawableAt(ctx, s.ID, 1050)
	if err != nil {
		t.Fatal(err)
	}
	if due.String() != "50000000000000000" {
		t.Errorf("WithdrawableAt = %s, want 50000000000000000", due)
	}

	rcpt, err := e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 1050})
	if err != nil {
		t.Fatal(err)
	}
	if !rcpt.AmountTransferred.Equal(due) {
		t.Errorf("AmountTransferred = %s, want %s", rcpt.AmountTransferred, due)
	}

	// The settled amount is durable: a fresh read reflects it.
	got, err := e.GetStream(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SettledAmount.Equal(due) {
		t.Errorf("stored SettledAmount = %s, want %s", got.SettledAmount, due)
	}

	// Immediate second withdrawal at the same observation time.
	_, err = e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, streamledger.ErrNothingDue) {
		t.Fatalf("second withdraw: error = %v, want ErrNothingDue", err)
	}

	// The receipt is durable and listed in observation-time order.
	receipts, err := e.ListReceipts(ctx, s.ID, settlement.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 {
		t.Fatalf("got %d receipts, want 1", len(receipts))
	}
	if receipts[0].ID != rcpt.ID {
		t.Error("listed receipt does not match returned receipt")
	}
	fetched, err := e.GetReceipt(ctx, rcpt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !fetched.NewSettledTotal.Equal(rcpt.NewSettledTotal) {
		t.Error("fetched receipt mismatch")
	}
}

func TestEngineLifecycle(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	s, err := e.CreateStream(ctx, "alice", "bob", streamledger.MustAmount(10), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Pause(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	_, err = e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, streamledger.ErrStreamPaused) {
		t.Fatalf("withdraw while paused: error = %v, want ErrStreamPaused", err)
	}

	if err := e.Resume(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	rcpt, err := e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 1050})
	if err != nil {
		t.Fatal(err)
	}
	if rcpt.AmountTransferred.String() != "500" {
		t.Errorf("AmountTransferred = %s, want 500", rcpt.AmountTransferred)
	}

	if err := e.Cancel(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.Resume(ctx, s.ID); !errors.Is(err, streamledger.ErrInvalidTransition) {
		t.Fatalf("resume after cancel: error = %v, want ErrInvalidTransition", err)
	}

	status, err := e.StatusAt(ctx, s.ID, 9999)
	if err != nil {
		t.Fatal(err)
	}
	if status != stream.StatusCancelled {
		t.Errorf("StatusAt = %q, want cancelled", status)
	}
}

func TestEngineCreateRejectsOverflow(t *testing.T) {
	e := newEngine(t)

	_, err := e.CreateStream(context.Background(), "alice", "bob", streamledger.MaxAmount(), 0, 10)
	if !errors.Is(err, streamledger.ErrAmountOverflow) {
		t.Fatalf("error = %v, want ErrAmountOverflow", err)
	}
}

func TestEngineListStreams(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	for _, payer := range []string{"alice", "alice", "carol"} {
		if _, err := e.CreateStream(ctx, payer, "bob", streamledger.MustAmount(1), 0, 10); err != nil {
			t.Fatal(err)
		}
	}

	all, err := e.ListStreams(ctx, "", stream.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d streams, want 3", len(all))
	}

	mine, err := e.ListStreams(ctx, "", stream.ListOpts{Payer: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("got %d alice streams, want 2", len(mine))
	}
}

func TestEngineBatchOperations(t *testing.T) {
	e := newEngine(t, streamledger.WithMaxBatchSize(10))
	ctx := context.Background()

	var streams []*stream.Stream
	for _, payer := range []string{"alice", "carol"} {
		s, err := e.CreateStream(ctx, payer, "bob", streamledger.MustAmount(5), 0, 100)
		if err != nil {
			t.Fatal(err)
		}
		streams = append(streams, s)
	}

	if failures := e.ValidateBatch(ctx, streams); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	total, err := e.AggregateCapacity(ctx, streams)
	if err != nil {
		t.Fatal(err)
	}
	if total.String() != "1000" {
		t.Errorf("AggregateCapacity = %s, want 1000", total)
	}

	groups := e.GroupByPayee(streams)
	if len(groups) != 1 || groups[0].Key != "bob" {
		t.Errorf("GroupByPayee = %+v", groups)
	}
}

// failingTransfer is a transfer provider that always refuses.
type failingTransfer struct{ err error }

func (failingTransfer) Name() string         { return "failing-transfer" }
func (failingTransfer) ProviderName() string { return "failing" }
func (p failingTransfer) Transfer(_ context.Context, _, _ string, _ types.Amount) error {
	return p.err
}

func TestEngineTransferFailureAbortsSettlement(t *testing.T) {
	transferErr := errors.New("insufficient escrow")
	e := newEngine(t,
		streamledger.WithPlugin(failingTransfer{err: transferErr}),
		streamledger.WithTransferProvider("failing"),
	)
	ctx := context.Background()

	s, err := e.CreateStream(ctx, "alice", "bob", streamledger.MustAmount(10), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 1050})
	if !errors.Is(err, transferErr) {
		t.Fatalf("error = %v, want transfer error", err)
	}

	// Nothing was persisted.
	got, err := e.GetStream(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SettledAmount.IsZero() {
		t.Errorf("SettledAmount = %s after aborted transfer, want 0", got.SettledAmount)
	}
	receipts, err := e.ListReceipts(ctx, s.ID, settlement.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 0 {
		t.Errorf("got %d receipts after aborted transfer, want 0", len(receipts))
	}
}

// recordingPlugin captures lifecycle events.
type recordingPlugin struct {
	mu      sync.Mutex
	created int
	settled int
}

func (*recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) OnStreamCreated(_ context.Context, _ *stream.Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return nil
}

func (p *recordingPlugin) OnStreamSettled(_ context.Context, _ *stream.Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled++
	return nil
}

func TestEnginePluginEvents(t *testing.T) {
	rec := &recordingPlugin{}
	e := newEngine(t, streamledger.WithPlugin(rec))
	ctx := context.Background()

	s, err := e.CreateStream(ctx, "alice", "bob", streamledger.MustAmount(10), 1000, 1100)
	if err != nil {
		t.Fatal(err)
	}

	// Withdraw everything at window end: the stream fully settles.
	if _, err := e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 1100}); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.created != 1 {
		t.Errorf("created events = %d, want 1", rec.created)
	}
	if rec.settled != 1 {
		t.Errorf("settled events = %d, want 1", rec.settled)
	}
}

func TestEngineConcurrentWithdrawals(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	s, err := e.CreateStream(ctx, "alice", "bob", streamledger.MustAmount(7), 0, 1000)
	if err != nil {
		t.Fatal(err)
	}

	// Concurrent withdrawals at the same time: exactly one succeeds with
	// the full due amount, the rest see NothingDue.
	var wg sync.WaitGroup
	var okCount, dueCount int
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: 500})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, streamledger.ErrNothingDue):
				dueCount++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if okCount != 1 || dueCount != 7 {
		t.Fatalf("ok=%d nothingDue=%d, want 1/7", okCount, dueCount)
	}

	got, err := e.GetStream(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SettledAmount.String() != "3500" {
		t.Errorf("SettledAmount = %s, want 3500", got.SettledAmount)
	}
}
