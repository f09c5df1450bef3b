package streamledger

import "github.com/xraph/streamledger/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Amount constructors
var (
	NewAmount       = types.NewAmount
	MustAmount      = types.MustAmount
	ParseAmount     = types.ParseAmount
	MustParseAmount = types.MustParseAmount
	ZeroAmount      = types.ZeroAmount
	MaxAmount       = types.MaxAmount
	SumAmounts      = types.SumAmounts
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
