// Package settlement implements the accounting state machine that governs
// value extraction from payment streams: computing the withdrawable amount
// at a point in time, validating a proposed settlement, and applying it
// with an all-or-nothing post-condition check.
package settlement

import (
	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/types"
)

// Request is a proposed withdrawal against a stream.
type Request struct {
	StreamID id.StreamID `json:"stream_id"`

	// RequestedAmount bounds the withdrawal. Nil means "withdraw all
	// currently due". A request above the due amount is capped, not
	// rejected.
	RequestedAmount *types.Amount `json:"requested_amount,omitempty"`

	// AtTime is the observation timestamp in unix seconds, supplied by
	// the caller. The engine never reads a wall clock itself, which keeps
	// every settlement deterministic and replayable.
	AtTime int64 `json:"at_time"`
}

// Receipt records one applied settlement.
type Receipt struct {
	types.Entity
	ID                id.ReceiptID `json:"id"`
	StreamID          id.StreamID  `json:"stream_id"`
	Payer             string       `json:"payer"`
	Payee             string       `json:"payee"`
	AmountTransferred types.Amount `json:"amount_transferred"`
	NewSettledTotal   types.Amount `json:"new_settled_total"`
	AtTime            int64        `json:"at_time"`
	AppID             string       `json:"app_id,omitempty"`
}

// PublicSignals are the numeric facts a proof system attests to for one
// settlement: everything needed to recompute the owed and withdrawable
// amounts without revealing unrelated stream details. The engine produces
// them alongside each receipt so they can be handed to an attestation
// provider unchanged.
type PublicSignals struct {
	RatePerSecond types.Amount `json:"rate_per_second"`
	StartTime     int64        `json:"start_time"`
	EndTime       int64        `json:"end_time"`
	AtTime        int64        `json:"at_time"`
	SettledAmount types.Amount `json:"settled_amount"`
	Withdrawable  types.Amount `json:"withdrawable"`
}
