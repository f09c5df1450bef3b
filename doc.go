// Package streamledger provides a settlement accounting engine for
// streaming payments: value flowing continuously from a payer to a payee
// at a fixed per-second rate over a bounded time window.
//
// Streamledger is designed as a library, not a service. Import it
// directly into your Go application. It provides:
//
//   - Overflow-checked fixed-point flow arithmetic for values up to 10^27 and beyond
//   - A stream lifecycle state machine (active, paused, cancelled, settled)
//   - All-or-nothing settlement with receipts and a strict error taxonomy
//   - Batch reconciliation: collecting validation, checked aggregation, stable grouping
//   - Pluggable transfer and attestation providers
//   - Memory, PostgreSQL, SQLite, and MongoDB stores via Grove ORM
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/streamledger"
//	    "github.com/xraph/streamledger/store/memory"
//	)
//
//	store := memory.New()
//	engine := streamledger.New(store)
//
//	// Start the engine (runs migrations and background workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// A stream moves value at a constant rate over a window:
//
//	rate := streamledger.MustAmount(1_000_000_000_000_000) // wei per second
//	s, err := engine.CreateStream(ctx, "alice", "bob", rate, startUnix, endUnix)
//
// Value accrues linearly with elapsed time, capped at the window end.
// The payee withdraws whatever has accrued but not yet been settled:
//
//	due, err := engine.WithdrawableAt(ctx, s.ID, nowUnix)
//	rcpt, err := engine.Withdraw(ctx, settlement.Request{StreamID: s.ID, AtTime: nowUnix})
//
// Every time-dependent operation takes the observation time as an
// argument. The engine never reads a wall clock in its accounting
// logic, so a settlement can always be replayed and audited.
//
// # Arithmetic
//
// All amounts use checked arbitrary-precision integer arithmetic. An
// operation whose result would exceed the representable range fails
// with ErrAmountOverflow instead of wrapping; streams with an
// unrepresentable capacity are rejected at creation. Fatal errors
// (overflow, invariant breach) indicate configuration or data problems
// and are never retryable; settlement state errors (NothingDue,
// StreamPaused) leave the stream untouched and may be retried.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	strm_01h2xcejqtf2nbrexx3vqjhp41  // Stream ID
//	rcpt_01h455vb4pex5vsknk084sn02q  // Receipt ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package streamledger
