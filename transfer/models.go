package transfer

import (
	"time"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Kind names the path a balance movement took.
type Kind string

const (
	KindTransfer    Kind = "transfer"
	KindGift        Kind = "gift"
	KindDevGrant    Kind = "dev_grant"
	KindPledgeSpend Kind = "pledge_spend"
)

// Record is the journal entry for a balance movement between two accounts.
type Record struct {
	ID        id.TransferID `json:"id"`
	From      types.Address `json:"from"`
	To        types.Address `json:"to"`
	Amount    types.Amount  `json:"amount"`
	Kind      Kind          `json:"kind"`
	Memo      string        `json:"memo,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
