package account

import (
	"time"

	"github.com/xraph/tokenledger/types"
)

// State is the seed axis of an account's lifecycle.
type State string

const (
	StateUnseeded State = "unseeded"
	StateSeeded   State = "seeded"
)

// Account is the per-address balance record. Locked never exceeds Balance.
type Account struct {
	types.Entity
	Address            types.Address `json:"address"`
	Balance            types.Amount  `json:"balance"`
	Locked             types.Amount  `json:"locked"`
	SeedGranted        bool          `json:"seed_granted"`
	PendingConsumption types.Amount  `json:"pending_consumption"`
	LastRegenAt        *time.Time    `json:"last_regen_at,omitempty"`

	// SeedDerived is only ever non-zero on the pledge fund.
	SeedDerived types.Amount `json:"seed_derived"`

	// DevLocked is the part of Locked that came from developer-pool grants.
	DevLocked types.Amount `json:"dev_locked"`

	// SeedLocked is the part of Locked still backed by the seed grant.
	// Regeneration converts it into regeneration lock instead of stacking.
	SeedLocked types.Amount `json:"seed_locked"`
}

// New returns the implicit zero record for addr.
func New(addr types.Address) *Account {
	return &Account{Address: addr}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	if a.LastRegenAt != nil {
		t := *a.LastRegenAt
		c.LastRegenAt = &t
	}
	return &c
}

// Transferable is Balance minus Locked.
func (a *Account) Transferable() types.Amount {
	return a.Balance.SaturatingSub(a.Locked)
}

// Unflagged is Balance minus SeedDerived.
func (a *Account) Unflagged() types.Amount {
	return a.Balance.SaturatingSub(a.SeedDerived)
}

// State reports whether the account has received its seed grant.
func (a *Account) State() State {
	if a.SeedGranted {
		return StateSeeded
	}
	return StateUnseeded
}

// NextRegenAt returns the earliest time the account may regenerate again.
// The zero time means the account has never regenerated.
func (a *Account) NextRegenAt(interval time.Duration) time.Time {
	if a.LastRegenAt == nil {
		return time.Time{}
	}
	return a.LastRegenAt.Add(interval)
}

// EligibleAt reports whether a regeneration at now respects the interval.
func (a *Account) EligibleAt(now time.Time, interval time.Duration) bool {
	if a.LastRegenAt == nil {
		return true
	}
	return !now.Before(a.LastRegenAt.Add(interval))
}

// Wallets is the immutable configuration written once by Initialize.
type Wallets struct {
	MintAuthority types.Address `json:"mint_authority"`
	Founder       types.Address `json:"founder"`
	DevPool       types.Address `json:"dev_pool"`
	DAOTreasury   types.Address `json:"dao_treasury"`
	PledgeFund    types.Address `json:"pledge_fund"`
	InitializedAt time.Time     `json:"initialized_at"`
}

// Role pairs a configured wallet with its role name.
type Role struct {
	Name    string
	Address types.Address
}

// Roles lists every configured wallet in a fixed order.
func (w *Wallets) Roles() []Role {
	return []Role{
		{"mint_authority", w.MintAuthority},
		{"founder", w.Founder},
		{"dev_pool", w.DevPool},
		{"dao_treasury", w.DAOTreasury},
		{"pledge_fund", w.PledgeFund},
	}
}

// RoleOf returns the role name of addr, or "" when addr is not a configured wallet.
func (w *Wallets) RoleOf(addr types.Address) string {
	for _, r := range w.Roles() {
		if r.Address == addr {
			return r.Name
		}
	}
	return ""
}

// PledgeStatus summarizes the pledge fund's seed-derived gate.
type PledgeStatus struct {
	Address     types.Address `json:"address"`
	Balance     types.Amount  `json:"balance"`
	SeedDerived types.Amount  `json:"seed_derived"`
	Spendable   types.Amount  `json:"spendable"`
}
