package tokenledger

import (
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Re-export common types for convenience so users don't have to import the types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Address is re-exported from types package.
type Address = types.Address

// ID is the identifier type for journal records.
type ID = id.ID

// Re-export constructors
var (
	Tokens           = types.Tokens
	AtomicUnits      = types.AtomicUnits
	ParseAmount      = types.Parse
	ParseAddress     = types.ParseAddress
	MustParseAddress = types.MustParseAddress
)
