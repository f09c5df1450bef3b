package streamledger_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/streamledger"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/store/memory"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		engine := streamledger.New(store,
			streamledger.WithLogger(slog.Default()),
			streamledger.WithNotifyConfig(100, 5*time.Second),
			streamledger.WithMaxBatchSize(1000),
		)

		// Start the engine
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// Open a stream: 0.001 token/second for 100 seconds
		rate := streamledger.MustAmount(1_000_000_000_000_000)
		s, err := engine.CreateStream(ctx, "alice", "bob", rate, 1000, 1100)
		if err != nil {
			t.Fatal(err)
		}

		// Halfway through the window, half the capacity is withdrawable
		due, err := engine.WithdrawableAt(ctx, s.ID, 1050)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("withdrawable: %s\n", due)

		// Withdraw everything currently due
		rcpt, err := engine.Withdraw(ctx, settlement.Request{
			StreamID: s.ID,
			AtTime:   1050,
		})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("settled: %s (total %s)\n", rcpt.AmountTransferred, rcpt.NewSettledTotal)
	})

	// Test Amount type examples
	t.Run("AmountExamples", func(t *testing.T) {
		// Constructors
		rate := streamledger.MustAmount(250)
		big := streamledger.MustParseAmount("1000000000000000000000000000") // 10^27
		_ = streamledger.ZeroAmount()

		// Checked arithmetic
		sum, err := rate.Add(streamledger.MustAmount(50))
		if err != nil {
			t.Fatal(err)
		}
		if sum.String() != "300" {
			t.Errorf("sum = %s, want 300", sum)
		}

		// A year of flow at 10^27 per second stays exact
		flowed, err := big.MulSeconds(31_536_000)
		if err != nil {
			t.Fatal(err)
		}
		if flowed.String() != "31536000000000000000000000000000000" {
			t.Errorf("flowed = %s", flowed)
		}

		// Comparison
		if rate.LessThan(big) {
			// rate is less than big
		}
	})
}
