// Package flow implements the fixed-point arithmetic for constant-rate
// value flows: how much has flowed through a stream at a point in time,
// how much can still flow, and the total capacity of the window.
//
// All functions are pure. Timestamps are unix seconds supplied by the
// caller — nothing in this package reads a wall clock. Every
// multiplication and addition is overflow-checked through types.Amount;
// a result is either exact or the operation fails with
// types.ErrAmountOverflow.
package flow

import (
	"github.com/xraph/streamledger/types"
)

// Flowed returns the amount accrued by a stream with the given per-second
// rate and [start, end) window, observed at now:
//
//   - 0 when now <= start (not yet started)
//   - rate * (end - start) when now >= end (window fully elapsed)
//   - rate * (now - start) otherwise
//
// Quantities are integers throughout, so no rounding mode exists and no
// fractional base units are ever produced.
func Flowed(rate types.Amount, start, end, now int64) (types.Amount, error) {
	if now <= start {
		return types.ZeroAmount(), nil
	}
	if now > end {
		now = end
	}
	return rate.MulSeconds(now - start)
}

// Capacity returns the maximum value the window can ever carry,
// rate * (end - start).
func Capacity(rate types.Amount, start, end int64) (types.Amount, error) {
	return Flowed(rate, start, end, end)
}

// Remaining returns the value that has not yet flowed at now:
// Capacity - Flowed(now).
func Remaining(rate types.Amount, start, end, now int64) (types.Amount, error) {
	total, err := Capacity(rate, start, end)
	if err != nil {
		return types.Amount{}, err
	}
	flowed, err := Flowed(rate, start, end, now)
	if err != nil {
		return types.Amount{}, err
	}
	return total.Sub(flowed)
}
