// Package mongo implements the ledger store on MongoDB via Grove ORM.
//
// Writes touching more than one account run in a multi-document
// transaction, which MongoDB only supports on replica sets and sharded
// clusters.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	ledgerstore "github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Collection name constants.
const (
	colAccounts      = "ledger_accounts"
	colWallets       = "ledger_wallets"
	colActions       = "ledger_actions"
	colRegenerations = "ledger_regenerations"
	colTransfers     = "ledger_transfers"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tokenledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, addr types.Address) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": addrText(addr)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokenledger.ErrNotFound
		}
		return nil, fmt.Errorf("tokenledger/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel

	filter := bson.M{}
	if opts.PendingOnly {
		filter["has_pending"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// SaveAccounts replaces every record. More than one record is written in a
// transaction so either all land or none do.
func (s *Store) SaveAccounts(ctx context.Context, accounts []*account.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(accounts))
	for i, a := range accounts {
		m := toAccountModel(a)
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": m.Address}).
			SetReplacement(m).
			SetUpsert(true)
	}
	col := s.mdb.Collection(colAccounts)

	if len(writes) == 1 {
		if _, err := col.BulkWrite(ctx, writes); err != nil {
			return fmt.Errorf("tokenledger/mongo: save account: %w", err)
		}
		return nil
	}

	sess, err := col.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("tokenledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return col.BulkWrite(txCtx, writes, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("tokenledger/mongo: save %d accounts: %w", len(writes), err)
	}
	return nil
}

// ==================== Wallet Store ====================

func (s *Store) GetWallets(ctx context.Context) (*account.Wallets, error) {
	var m walletsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": walletsDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokenledger.ErrNotFound
		}
		return nil, fmt.Errorf("tokenledger/mongo: get wallets: %w", err)
	}
	return fromWalletsModel(&m)
}

// InitWallets inserts the wallet document and upserts the genesis accounts
// in one transaction.
func (s *Store) InitWallets(ctx context.Context, w *account.Wallets, genesis []*account.Account) error {
	if len(genesis) == 0 {
		_, err := s.mdb.NewInsert(toWalletsModel(w)).Exec(ctx)
		return initWalletsErr(err)
	}

	wallets := s.mdb.Collection(colWallets)
	accounts := s.mdb.Collection(colAccounts)
	writes := make([]mongo.WriteModel, len(genesis))
	for i, a := range genesis {
		m := toAccountModel(a)
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": m.Address}).
			SetReplacement(m).
			SetUpsert(true)
	}

	sess, err := wallets.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("tokenledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		if _, err := wallets.InsertOne(txCtx, toWalletsModel(w)); err != nil {
			return nil, err
		}
		return accounts.BulkWrite(txCtx, writes, options.BulkWrite().SetOrdered(true))
	})
	return initWalletsErr(err)
}

func initWalletsErr(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return tokenledger.ErrAlreadyInitialized
	default:
		return fmt.Errorf("tokenledger/mongo: init wallets: %w", err)
	}
}

// ==================== Action Store ====================

func (s *Store) RecordActions(ctx context.Context, records []*action.Record) error {
	for _, r := range records {
		_, err := s.mdb.NewInsert(toActionModel(r)).Exec(ctx)
		if err != nil {
			// A retried flush may resend records that already landed.
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("tokenledger/mongo: record action: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryActions(ctx context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error) {
	var models []actionModel

	filter := bson.M{}
	if addr != types.ZeroAddress {
		filter["address"] = addrText(addr)
	}
	window := bson.M{}
	if !opts.Start.IsZero() {
		window["$gte"] = opts.Start
	}
	if !opts.End.IsZero() {
		window["$lt"] = opts.End
	}
	if len(window) > 0 {
		filter["timestamp"] = window
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: query actions: %w", err)
	}

	result := make([]*action.Record, len(models))
	for i := range models {
		r, err := fromActionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) PurgeActions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.Collection(colActions).
		DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("tokenledger/mongo: purge actions: %w", err)
	}
	return res.DeletedCount, nil
}

// ==================== Regeneration Store ====================

func (s *Store) RecordRegeneration(ctx context.Context, e *regen.Event) error {
	_, err := s.mdb.NewInsert(toRegenerationModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokenledger/mongo: record regeneration: %w", err)
	}
	return nil
}

func (s *Store) ListRegenerations(ctx context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error) {
	var models []regenerationModel

	filter := bson.M{}
	if addr != types.ZeroAddress {
		filter["address"] = addrText(addr)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: list regenerations: %w", err)
	}

	result := make([]*regen.Event, len(models))
	for i := range models {
		e, err := fromRegenerationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Transfer Store ====================

func (s *Store) RecordTransfer(ctx context.Context, r *transfer.Record) error {
	_, err := s.mdb.NewInsert(toTransferModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tokenledger/mongo: record transfer: %w", err)
	}
	return nil
}

func (s *Store) ListTransfers(ctx context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error) {
	var models []transferModel

	filter := bson.M{}
	if addr != types.ZeroAddress {
		a := addrText(addr)
		filter["$or"] = bson.A{bson.M{"from": a}, bson.M{"to": a}}
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: list transfers: %w", err)
	}

	result := make([]*transfer.Record, len(models))
	for i := range models {
		r, err := fromTransferModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "has_pending", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colActions: {
			{Keys: bson.D{{Key: "address", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		colRegenerations: {
			{Keys: bson.D{{Key: "address", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		colTransfers: {
			{Keys: bson.D{{Key: "from", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "to", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}}},
		},
	}
}
