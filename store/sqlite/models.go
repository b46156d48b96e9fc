package sqlite

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

// Addresses are stored as lowercase hex so text order matches byte order.
// Amounts are TEXT in atomic units; zero is always stored as "0".

func addrText(a types.Address) string {
	return hexutil.Encode(a.Bytes())
}

func parseAmounts(dst []*types.Amount, src ...string) error {
	for i, s := range src {
		a, err := types.FromAtomic(s)
		if err != nil {
			return err
		}
		*dst[i] = a
	}
	return nil
}

func parseAddresses(dst []*types.Address, src ...string) error {
	for i, s := range src {
		a, err := types.ParseAddress(s)
		if err != nil {
			return err
		}
		*dst[i] = a
	}
	return nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:ledger_accounts"`

	Address            string     `grove:"address,pk"`
	Balance            string     `grove:"balance"`
	Locked             string     `grove:"locked"`
	SeedGranted        bool       `grove:"seed_granted"`
	PendingConsumption string     `grove:"pending_consumption"`
	LastRegenAt        *time.Time `grove:"last_regen_at"`
	SeedDerived        string     `grove:"seed_derived"`
	DevLocked          string     `grove:"dev_locked"`
	SeedLocked         string     `grove:"seed_locked"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
}

func toAccountModel(a *account.Account) accountModel {
	return accountModel{
		Address:            addrText(a.Address),
		Balance:            a.Balance.Atomic(),
		Locked:             a.Locked.Atomic(),
		SeedGranted:        a.SeedGranted,
		PendingConsumption: a.PendingConsumption.Atomic(),
		LastRegenAt:        a.LastRegenAt,
		SeedDerived:        a.SeedDerived.Atomic(),
		DevLocked:          a.DevLocked.Atomic(),
		SeedLocked:         a.SeedLocked.Atomic(),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	a := &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SeedGranted: m.SeedGranted,
		LastRegenAt: m.LastRegenAt,
	}
	if err := parseAddresses([]*types.Address{&a.Address}, m.Address); err != nil {
		return nil, fmt.Errorf("account %s: %w", m.Address, err)
	}
	err := parseAmounts(
		[]*types.Amount{&a.Balance, &a.Locked, &a.PendingConsumption, &a.SeedDerived, &a.DevLocked, &a.SeedLocked},
		m.Balance, m.Locked, m.PendingConsumption, m.SeedDerived, m.DevLocked, m.SeedLocked,
	)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", m.Address, err)
	}
	return a, nil
}

// ==================== Wallet models ====================

// walletsModel is a single-row table; the fixed primary key makes the
// first insert the only one.
type walletsModel struct {
	grove.BaseModel `grove:"table:ledger_wallets"`

	ID            int       `grove:"id,pk"`
	MintAuthority string    `grove:"mint_authority"`
	Founder       string    `grove:"founder"`
	DevPool       string    `grove:"dev_pool"`
	DAOTreasury   string    `grove:"dao_treasury"`
	PledgeFund    string    `grove:"pledge_fund"`
	InitializedAt time.Time `grove:"initialized_at"`
}

const walletsRowID = 1

func toWalletsModel(w *account.Wallets) *walletsModel {
	return &walletsModel{
		ID:            walletsRowID,
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
	err := parseAddresses(
		[]*types.Address{&w.MintAuthority, &w.Founder, &w.DevPool, &w.DAOTreasury, &w.PledgeFund},
		m.MintAuthority, m.Founder, m.DevPool, m.DAOTreasury, m.PledgeFund,
	)
	if err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	return w, nil
}

// ==================== Action models ====================

type actionModel struct {
	grove.BaseModel `grove:"table:ledger_actions"`

	ID        string            `grove:"id,pk"`
	Address   string            `grove:"address"`
	Caller    string            `grove:"caller"`
	Amount    string            `grove:"amount"`
	Kind      int               `grove:"kind"`
	Metadata  map[string]string `grove:"metadata,type:jsonb"`
	Timestamp time.Time         `grove:"timestamp"`
}

func toActionModel(r *action.Record) actionModel {
	return actionModel{
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
	r := &action.Record{
		ID:        actionID,
		Kind:      action.Kind(m.Kind),
		Metadata:  m.Metadata,
		Timestamp: m.Timestamp,
	}
	if err := parseAddresses([]*types.Address{&r.Address, &r.Caller}, m.Address, m.Caller); err != nil {
		return nil, err
	}
	if err := parseAmounts([]*types.Amount{&r.Amount}, m.Amount); err != nil {
		return nil, err
	}
	return r, nil
}

// ==================== Regeneration models ====================

type regenerationModel struct {
	grove.BaseModel `grove:"table:ledger_regenerations"`

	ID           string    `grove:"id,pk"`
	Address      string    `grove:"address"`
	Caller       string    `grove:"caller"`
	Requested    string    `grove:"requested"`
	Amount       string    `grove:"amount"`
	UserShare    string    `grove:"user_share"`
	PledgeShare  string    `grove:"pledge_share"`
	DAOShare     string    `grove:"dao_share"`
	FounderShare string    `grove:"founder_share"`
	SeedDerived  string    `grove:"seed_derived"`
	SelfService  bool      `grove:"self_service"`
	Timestamp    time.Time `grove:"timestamp"`
}

func toRegenerationModel(e *regen.Event) *regenerationModel {
	return &regenerationModel{
		ID:           e.ID.String(),
		Address:      addrText(e.Address),
		Caller:       addrText(e.Caller),
		Requested:    e.Requested.Atomic(),
		Amount:       e.Amount.Atomic(),
		UserShare:    e.Shares.User.Atomic(),
		PledgeShare:  e.Shares.Pledge.Atomic(),
		DAOShare:     e.Shares.DAO.Atomic(),
		FounderShare: e.Shares.Founder.Atomic(),
		SeedDerived:  e.SeedDerived.Atomic(),
		SelfService:  e.SelfService,
		Timestamp:    e.Timestamp,
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
	if err := parseAddresses([]*types.Address{&e.Address, &e.Caller}, m.Address, m.Caller); err != nil {
		return nil, err
	}
	err = parseAmounts(
		[]*types.Amount{&e.Requested, &e.Amount, &e.Shares.User, &e.Shares.Pledge, &e.Shares.DAO, &e.Shares.Founder, &e.SeedDerived},
		m.Requested, m.Amount, m.UserShare, m.PledgeShare, m.DAOShare, m.FounderShare, m.SeedDerived,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ==================== Transfer models ====================

type transferModel struct {
	grove.BaseModel `grove:"table:ledger_transfers"`

	ID          string    `grove:"id,pk"`
	FromAddress string    `grove:"from_address"`
	ToAddress   string    `grove:"to_address"`
	Amount      string    `grove:"amount"`
	Kind        string    `grove:"kind"`
	Memo        string    `grove:"memo"`
	Timestamp   time.Time `grove:"timestamp"`
}

func toTransferModel(r *transfer.Record) *transferModel {
	return &transferModel{
		ID:          r.ID.String(),
		FromAddress: addrText(r.From),
		ToAddress:   addrText(r.To),
		Amount:      r.Amount.Atomic(),
		Kind:        string(r.Kind),
		Memo:        r.Memo,
		Timestamp:   r.Timestamp,
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
	if err := parseAddresses([]*types.Address{&r.From, &r.To}, m.FromAddress, m.ToAddress); err != nil {
		return nil, err
	}
	if err := parseAmounts([]*types.Amount{&r.Amount}, m.Amount); err != nil {
		return nil, err
	}
	return r, nil
}
