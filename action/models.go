package action

import (
	"time"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Kind classifies the off-ledger capability that was consumed.
type Kind uint8

const (
	KindGeneric Kind = 0
)

// Record is one reported unit of consumption. Recording it never reduces
// the account's balance; it only raises pending consumption.
type Record struct {
	ID        id.ActionID       `json:"id"`
	Address   types.Address     `json:"address"`
	Caller    types.Address     `json:"caller"`
	Amount    types.Amount      `json:"amount"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
