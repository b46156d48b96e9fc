// Package regen holds regeneration events and the parameters that shape them.
package regen

import (
	"fmt"
	"time"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// MaxBps is 100% in basis points.
const MaxBps = 10_000

// DefaultInterval is the minimum spacing between two regenerations of one account.
const DefaultInterval = 24 * time.Hour

// Split is the share of a regenerated amount minted to each stakeholder pool,
// in basis points of the user's amount. The user always receives the full amount.
type Split struct {
	PledgeBps  uint64 `json:"pledge_bps" yaml:"pledge_bps" mapstructure:"pledge_bps"`
	DAOBps     uint64 `json:"dao_bps" yaml:"dao_bps" mapstructure:"dao_bps"`
	FounderBps uint64 `json:"founder_bps" yaml:"founder_bps" mapstructure:"founder_bps"`
}

// DefaultSplit mints nothing to the pools. Deployments configure their own ratios.
var DefaultSplit = Split{}

// Validate checks each ratio is at most 100%.
func (s Split) Validate() error {
	for name, bps := range map[string]uint64{
		"pledge_bps":  s.PledgeBps,
		"dao_bps":     s.DAOBps,
		"founder_bps": s.FounderBps,
	} {
		if bps > MaxBps {
			return fmt.Errorf("regen: %s %d exceeds %d", name, bps, MaxBps)
		}
	}
	return nil
}

// Shares is the deterministic breakdown of one regeneration.
type Shares struct {
	User    types.Amount `json:"user"`
	Pledge  types.Amount `json:"pledge"`
	DAO     types.Amount `json:"dao"`
	Founder types.Amount `json:"founder"`
}

// Apply computes the shares for amount. Each pool share is floored.
func (s Split) Apply(amount types.Amount) (Shares, error) {
	pledge, o1 := amount.MulBps(s.PledgeBps)
	dao, o2 := amount.MulBps(s.DAOBps)
	founder, o3 := amount.MulBps(s.FounderBps)
	if o1 || o2 || o3 {
		return Shares{}, fmt.Errorf("regen: share of %s overflows", amount.Atomic())
	}
	return Shares{User: amount, Pledge: pledge, DAO: dao, Founder: founder}, nil
}

// Total is the sum of all minted shares.
func (s Shares) Total() (types.Amount, bool) {
	return types.Sum(s.User, s.Pledge, s.DAO, s.Founder)
}

// Params controls eligibility.
type Params struct {
	// Interval is the minimum time between regenerations for one account.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// CapToPending limits each regeneration to the account's pending consumption.
	CapToPending bool `json:"cap_to_pending" yaml:"cap_to_pending" mapstructure:"cap_to_pending"`
}

// DefaultParams returns a 24h interval with the pending cap enabled.
func DefaultParams() Params {
	return Params{Interval: DefaultInterval, CapToPending: true}
}

// Event is the audit record emitted for every successful regeneration.
type Event struct {
	ID          id.RegenerationID `json:"id"`
	Address     types.Address     `json:"address"`
	Caller      types.Address     `json:"caller"`
	Requested   types.Amount      `json:"requested"`
	Amount      types.Amount      `json:"amount"`
	Shares      Shares            `json:"shares"`
	SeedDerived types.Amount      `json:"seed_derived"`
	SelfService bool              `json:"self_service"`
	Timestamp   time.Time         `json:"timestamp"`
}
