// Package types provides common types used across StreamLedger.
package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Amount represents a non-negative value in base units, the smallest
// indivisible unit tracked by the ledger. All arithmetic is integer-only
// and explicitly overflow-checked — no floating point, no silent wraparound.
//
// Amounts routinely exceed 64-bit range (per-second rates up to 10^27 are
// expected), so the representation is a big integer bounded by MaxAmount.
type Amount struct {
	v *big.Int // nil means zero
}

// maxAmount is 2^256 - 1, the widest value any settlement backend mirrors.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxAmount returns the largest representable Amount (2^256 - 1).
func MaxAmount() Amount {
	return Amount{v: new(big.Int).Set(maxAmount)}
}

// Amount errors.
var (
	// ErrAmountOverflow is returned when a checked operation would exceed
	// MaxAmount. Callers must treat it as fatal: the result was never
	// computed, and no truncated value is ever produced.
	ErrAmountOverflow = errors.New("types: amount overflow")

	// ErrAmountNegative is returned when a result or input would be
	// negative. Amounts are unsigned by construction.
	ErrAmountNegative = errors.New("types: negative amount")

	// ErrInvalidAmount is returned for unparseable amount strings.
	ErrInvalidAmount = errors.New("types: invalid amount")
)

// ZeroAmount returns the zero Amount.
func ZeroAmount() Amount { return Amount{} }

// NewAmount creates an Amount from an int64 base-unit count.
func NewAmount(units int64) (Amount, error) {
	if units < 0 {
		return Amount{}, ErrAmountNegative
	}
	return Amount{v: big.NewInt(units)}, nil
}

// MustAmount is like NewAmount but panics on error. Use for constants.
func MustAmount(units int64) Amount {
	a, err := NewAmount(units)
	if err != nil {
		panic(fmt.Sprintf("types: must amount %d: %v", units, err))
	}
	return a
}

// AmountFromUint64 creates an Amount from a uint64 base-unit count.
func AmountFromUint64(units uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(units)}
}

// ParseAmount parses a base-10 base-unit string (e.g. "1000000000000000").
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.Sign() < 0 {
		return Amount{}, ErrAmountNegative
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{v: v}, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(fmt.Sprintf("types: must parse amount %q: %v", s, err))
	}
	return a
}

// AmountFromBigInt creates an Amount from a big.Int, copying the value.
func AmountFromBigInt(v *big.Int) (Amount, error) {
	if v == nil {
		return Amount{}, fmt.Errorf("%w: nil value", ErrInvalidAmount)
	}
	if v.Sign() < 0 {
		return Amount{}, ErrAmountNegative
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{v: new(big.Int).Set(v)}, nil
}

// big returns the internal value, treating nil as zero. Read-only.
func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Checked arithmetic

// Add returns a + b, or ErrAmountOverflow past MaxAmount.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := new(big.Int).Add(a.big(), b.big())
	if sum.Cmp(maxAmount) > 0 {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{v: sum}, nil
}

// Sub returns a - b, or ErrAmountNegative when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff := new(big.Int).Sub(a.big(), b.big())
	if diff.Sign() < 0 {
		return Amount{}, ErrAmountNegative
	}
	return Amount{v: diff}, nil
}

// SubClamped returns a - b clamped to zero instead of erroring.
func (a Amount) SubClamped(b Amount) Amount {
	diff, err := a.Sub(b)
	if err != nil {
		return ZeroAmount()
	}
	return diff
}

// MulSeconds returns a * seconds, or ErrAmountOverflow past MaxAmount.
// Negative durations are rejected with ErrAmountNegative.
func (a Amount) MulSeconds(seconds int64) (Amount, error) {
	if seconds < 0 {
		return Amount{}, ErrAmountNegative
	}
	prod := new(big.Int).Mul(a.big(), big.NewInt(seconds))
	if prod.Cmp(maxAmount) > 0 {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{v: prod}, nil
}

// Comparison

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.big().Sign() > 0 }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// BigInt returns a copy of the amount as a big.Int.
func (a Amount) BigInt() *big.Int { return new(big.Int).Set(a.big()) }

// String returns the base-10 base-unit representation.
func (a Amount) String() string { return a.big().String() }

// MarshalText implements encoding.TextMarshaler. Amounts serialize as
// base-10 strings so that JSON and database round-trips never lose
// precision to 64-bit number types.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = ZeroAmount()
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SumAmounts calculates the checked sum of multiple Amounts.
// The whole sum fails with ErrAmountOverflow even when no single term
// overflows on its own.
func SumAmounts(values ...Amount) (Amount, error) {
	total := ZeroAmount()
	var err error
	for _, v := range values {
		total, err = total.Add(v)
		if err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
