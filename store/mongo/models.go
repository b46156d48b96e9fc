package mongo

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/xraph/grove"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Amounts are stored as atomic-unit decimal strings; BSON has no 256-bit
// integer. has_pending mirrors pending_consumption != 0 so the batch
// regeneration listing can use an index.

func addrText(a types.Address) string {
	return hexutil.Encode(a.Bytes())
}

func parseAmount(s string) (types.Amount, error) {
	return types.FromAtomic(s)
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:ledger_accounts"`

	Address            string     `grove:"address,pk"          bson:"_id"`
	Balance            string     `grove:"balance"             bson:"balance"`
	Locked             string     `grove:"locked"              bson:"locked"`
	SeedGranted        bool       `grove:"seed_granted"        bson:"seed_granted"`
	PendingConsumption string     `grove:"pending_consumption" bson:"pending_consumption"`
	HasPending         bool       `grove:"has_pending"         bson:"has_pending"`
	LastRegenAt        *time.Time `grove:"last_regen_at"       bson:"last_regen_at,omitempty"`
	SeedDerived        string     `grove:"seed_derived"        bson:"seed_derived"`
	DevLocked          string     `grove:"dev_locked"          bson:"dev_locked"`
	SeedLocked         string     `grove:"seed_locked"         bson:"seed_locked"`
	CreatedAt          time.Time  `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"          bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		Address:            addrText(a.Address),
		Balance:            a.Balance.Atomic(),
		Locked:             a.Locked.Atomic(),
		SeedGranted:        a.SeedGranted,
		PendingConsumption: a.PendingConsumption.Atomic(),
		HasPending:         a.PendingConsumption.IsPositive(),
		LastRegenAt:        a.LastRegenAt,
		SeedDerived:        a.SeedDerived.Atomic(),
		DevLocked:          a.DevLocked.Atomic(),
		SeedLocked:         a.SeedLocked.Atomic(),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	addr, err := types.ParseAddress(m.Address)
	if err != nil {
		return nil, err
	}
	a := &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Address:     addr,
		SeedGranted: m.SeedGranted,
		LastRegenAt: m.LastRegenAt,
	}
	fields := []struct {
		dst *types.Amount
		src string
	}{
		{&a.Balance, m.Balance},
		{&a.Locked, m.Locked},
		{&a.PendingConsumption, m.PendingConsumption},
		{&a.SeedDerived, m.SeedDerived},
		{&a.DevLocked, m.DevLocked},
		{&a.SeedLocked, m.SeedLocked},
	}
	for _, f := range fields {
		if *f.dst, err = parseAmount(f.src); err != nil {
			return nil, fmt.Errorf("account %s: %w", m.Address, err)
		}
	}
	return a, nil
}

// ==================== Wallet models ====================

type walletsModel struct {
	grove.BaseModel `grove:"table:ledger_wallets"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	MintAuthority string    `grove:"mint_authority" bson:"mint_authority"`
	Founder       string    `grove:"founder"        bson:"founder"`
	DevPool       string    `grove:"dev_pool"       bson:"dev_pool"`
	DAOTreasury   string    `grove:"dao_treasury"   bson:"dao_treasury"`
	PledgeFund    string    `grove:"pledge_fund"    bson:"pledge_fund"`
	InitializedAt time.Time `grove:"initialized_at" bson:"initialized_at"`
}

const walletsDocID = "config"

func toWalletsModel(w *account.Wallets) *walletsModel {
	return &walletsModel{
		ID:            walletsDocID,
		MintAuthority: addrText(w.MintAuthority),
		Founder:       addrText(w.Founder),
		DevPool:       addrText(w.DevPool),
		DAOTreasury:   addrText(w.DAOTreasury),
		PledgeFund:    addrText(w.PledgeFund),
		InitializedAt: w.InitializedAt,
	}
}

func fromWalletsModel(m *walletsModel) (*account.Wallets, error) {
	w := &account.Wallets{InitializedAt: m.InitializedAt}
	fields := []struct {
		dst *types.Address
		src string
	}{
		{&w.MintAuthority, m.MintAuthority},
		{&w.Founder, m.Founder},
		{&w.DevPool, m.DevPool},
		{&w.DAOTreasury, m.DAOTreasury},
		{&w.PledgeFund, m.PledgeFund},
	}
	for _, f := range fields {
		addr, err := types.ParseAddress(f.src)
		if err != nil {
			return nil, fmt.Errorf("wallets: %w", err)
		}
		*f.dst = addr
	}
	return w, nil
}

// ==================== Action models ====================

type actionModel struct {
	grove.BaseModel `grove:"table:ledger_actions"`

	ID        string            `grove:"id,pk"     bson:"_id"`
	Address   string            `grove:"address"   bson:"address"`
	Caller    string            `grove:"caller"    bson:"caller"`
	Amount    string            `grove:"amount"    bson:"amount"`
	Kind      int               `grove:"kind"      bson:"kind"`
	Metadata  map[string]string `grove:"metadata"  bson:"metadata,omitempty"`
	Timestamp time.Time         `grove:"timestamp" bson:"timestamp"`
}

func toActionModel(r *action.Record) *actionModel {
	return &actionModel{
		ID:        r.ID.String(),
		Address:   addrText(r.Address),
		Caller:    addrText(r.Caller),
		Amount:    r.Amount.Atomic(),
		Kind:      int(r.Kind),
		Metadata:  r.Metadata,
		Timestamp: r.Timestamp,
	}
}

func fromActionModel(m *actionModel) (*action.Record, error) {
	actionID, err := id.ParseActionID(m.ID)
	if err != nil {
		return nil, err
	}
	addr, err := types.ParseAddress(m.Address)
	if err != nil {
		return nil, err
	}
	caller, err := types.ParseAddress(m.Caller)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &action.Record{
		ID:        actionID,
		Address:   addr,
		Caller:    caller,
		Amount:    amount,
		Kind:      action.Kind(m.Kind),
		Metadata:  m.Metadata,
		Timestamp: m.Timestamp,
	}, nil
}

// ==================== Regeneration models ====================

type sharesModel struct {
	User    string `bson:"user"`
	Pledge  string `bson:"pledge"`
	DAO     string `bson:"dao"`
	Founder string `bson:"founder"`
}

type regenerationModel struct {
	grove.BaseModel `grove:"table:ledger_regenerations"`

	ID          string      `grove:"id,pk"        bson:"_id"`
	Address     string      `grove:"address"      bson:"address"`
	Caller      string      `grove:"caller"       bson:"caller"`
	Requested   string      `grove:"requested"    bson:"requested"`
	Amount      string      `grove:"amount"       bson:"amount"`
	Shares      sharesModel `grove:"shares"       bson:"shares"`
	SeedDerived string      `grove:"seed_derived" bson:"seed_derived"`
	SelfService bool        `grove:"self_service" bson:"self_service"`
	Timestamp   time.Time   `grove:"timestamp"    bson:"timestamp"`
}

func toRegenerationModel(e *regen.Event) *regenerationModel {
	return &regenerationModel{
		ID:        e.ID.String(),
		Address:   addrText(e.Address),
		Caller:    addrText(e.Caller),
		Requested: e.Requested.Atomic(),
		Amount:    e.Amount.Atomic(),
		Shares: sharesModel{
			User:    e.Shares.User.Atomic(),
			Pledge:  e.Shares.Pledge.Atomic(),
			DAO:     e.Shares.DAO.Atomic(),
			Founder: e.Shares.Founder.Atomic(),
		},
		SeedDerived: e.SeedDerived.Atomic(),
		SelfService: e.SelfService,
		Timestamp:   e.Timestamp,
	}
}

func fromRegenerationModel(m *regenerationModel) (*regen.Event, error) {
	regenID, err := id.ParseRegenerationID(m.ID)
	if err != nil {
		return nil, err
	}
	e := &regen.Event{
		ID:          regenID,
		SelfService: m.SelfService,
		Timestamp:   m.Timestamp,
	}
	if e.Address, err = types.ParseAddress(m.Address); err != nil {
		return nil, err
	}
	if e.Caller, err = types.ParseAddress(m.Caller); err != nil {
		return nil, err
	}
	amounts := []struct {
		dst *types.Amount
		src string
	}{
		{&e.Requested, m.Requested},
		{&e.Amount, m.Amount},
		{&e.Shares.User, m.Shares.User},
		{&e.Shares.Pledge, m.Shares.Pledge},
		{&e.Shares.DAO, m.Shares.DAO},
		{&e.Shares.Founder, m.Shares.Founder},
		{&e.SeedDerived, m.SeedDerived},
	}
	for _, f := range amounts {
		if *f.dst, err = parseAmount(f.src); err != nil {
			return nil, fmt.Errorf("regeneration %s: %w", m.ID, err)
		}
	}
	return e, nil
}

// ==================== Transfer models ====================

type transferModel struct {
	grove.BaseModel `grove:"table:ledger_transfers"`

	ID        string    `grove:"id,pk"     bson:"_id"`
	From      string    `grove:"from"      bson:"from"`
	To        string    `grove:"to"        bson:"to"`
	Amount    string    `grove:"amount"    bson:"amount"`
	Kind      string    `grove:"kind"      bson:"kind"`
	Memo      string    `grove:"memo"      bson:"memo,omitempty"`
	Timestamp time.Time `grove:"timestamp" bson:"timestamp"`
}

func toTransferModel(r *transfer.Record) *transferModel {
	return &transferModel{
		ID:        r.ID.String(),
		From:      addrText(r.From),
		To:        addrText(r.To),
		Amount:    r.Amount.Atomic(),
		Kind:      string(r.Kind),
		Memo:      r.Memo,
		Timestamp: r.Timestamp,
	}
}

func fromTransferModel(m *transferModel) (*transfer.Record, error) {
	transferID, err := id.ParseTransferID(m.ID)
	if err != nil {
		return nil, err
	}
	r := &transfer.Record{
		ID:        transferID,
		Kind:      transfer.Kind(m.Kind),
		Memo:      m.Memo,
		Timestamp: m.Timestamp,
	}
	if r.From, err = types.ParseAddress(m.From); err != nil {
		return nil, err
	}
	if r.To, err = types.ParseAddress(m.To); err != nil {
		return nil, err
	}
	if r.Amount, err = parseAmount(m.Amount); err != nil {
		return nil, err
	}
	return r, nil
}
