// Package bolt implements the ledger store on an embedded bbolt database.
//
// Accounts are keyed by their 20 address bytes so cursor order is address
// order. Journal entries are keyed by a big-endian nanosecond timestamp
// followed by the record ID, which keeps them in time order and lets the
// action purge stop at the first entry it must keep.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

var (
	bucketAccounts  = []byte("accounts")
	bucketWallets   = []byte("wallets")
	bucketActions   = []byte("actions")
	bucketRegens    = []byte("regenerations")
	bucketTransfers = []byte("transfers")
	walletsKey      = []byte("config")

	allBuckets = [][]byte{bucketAccounts, bucketWallets, bucketActions, bucketRegens, bucketTransfers}

	errStopIteration = errors.New("bolt: stop iteration")
)

// Store persists the ledger in a single bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path. A nil options value uses a
// one-second file lock timeout.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	st := &Store{db: db}
	if err := st.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// DB returns the underlying bbolt handle.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// ──────────────────────────────────────────────────
// Account methods
// ──────────────────────────────────────────────────

func (s *Store) GetAccount(_ context.Context, addr types.Address) (*account.Account, error) {
	var a account.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAccounts).Get(addr.Bytes())
		if raw == nil {
			return tokenledger.ErrNotFound
		}
		return json.Unmarshal(raw, &a)
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return &a, nil
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	result := make([]*account.Account, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		skipped := 0
		return tx.Bucket(bucketAccounts).ForEach(func(_, raw []byte) error {
			var a account.Account
			if err := json.Unmarshal(raw, &a); err != nil {
				return err
			}
			if opts.PendingOnly && a.PendingConsumption.IsZero() {
				return nil
			}
			if skipped < opts.Offset {
				skipped++
				return nil
			}
			result = append(result, &a)
			if opts.Limit > 0 && len(result) >= opts.Limit {
				return errStopIteration
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, s.wrap(err)
	}
	return result, nil
}

// SaveAccounts writes every record in one bbolt transaction.
func (s *Store) SaveAccounts(_ context.Context, accounts []*account.Account) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		for _, a := range accounts {
			encoded, err := json.Marshal(a)
			if err != nil {
				return err
			}
			if err := b.Put(a.Address.Bytes(), encoded); err != nil {
				return err
			}
		}
		return nil
	}))
}

// ──────────────────────────────────────────────────
// Wallet configuration
// ──────────────────────────────────────────────────

func (s *Store) GetWallets(_ context.Context) (*account.Wallets, error) {
	var w account.Wallets
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketWallets).Get(walletsKey)
		if raw == nil {
			return tokenledger.ErrNotFound
		}
		return json.Unmarshal(raw, &w)
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return &w, nil
}

func (s *Store) InitWallets(_ context.Context, w *account.Wallets, genesis []*account.Account) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWallets)
		if b.Get(walletsKey) != nil {
			return tokenledger.ErrAlreadyInitialized
		}
		encoded, err := json.Marshal(w)
		if err != nil {
			return err
		}
		if err := b.Put(walletsKey, encoded); err != nil {
			return err
		}

		accounts := tx.Bucket(bucketAccounts)
		for _, a := range genesis {
			encoded, err := json.Marshal(a)
			if err != nil {
				return err
			}
			if err := accounts.Put(a.Address.Bytes(), encoded); err != nil {
				return err
			}
		}
		return nil
	}))
}

// ──────────────────────────────────────────────────
// Action journal
// ──────────────────────────────────────────────────

func (s *Store) RecordActions(_ context.Context, records []*action.Record) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)
		for _, r := range records {
			if err := putJSON(b, journalKey(r.Timestamp, r.ID.String()), r); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *Store) QueryActions(_ context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error) {
	var result []*action.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		result, err = scanNewest(tx.Bucket(bucketActions), opts.Offset, opts.Limit, func(r *action.Record) bool {
			if addr != types.ZeroAddress && r.Address != addr {
				return false
			}
			if !opts.Start.IsZero() && r.Timestamp.Before(opts.Start) {
				return false
			}
			return opts.End.IsZero() || r.Timestamp.Before(opts.End)
		})
		return err
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return result, nil
}

func (s *Store) PurgeActions(_ context.Context, before time.Time) (int64, error) {
	var purged int64
	limit := timeKey(before)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)

		// Deleting under a live cursor skips entries, so collect keys first.
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], limit) < 0; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = int64(len(stale))
		return nil
	})
	if err != nil {
		return 0, s.wrap(err)
	}
	return purged, nil
}

// ──────────────────────────────────────────────────
// Regeneration journal
// ──────────────────────────────────────────────────

func (s *Store) RecordRegeneration(_ context.Context, e *regen.Event) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketRegens), journalKey(e.Timestamp, e.ID.String()), e)
	}))
}

func (s *Store) ListRegenerations(_ context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error) {
	var result []*regen.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		result, err = scanNewest(tx.Bucket(bucketRegens), opts.Offset, opts.Limit, func(e *regen.Event) bool {
			return addr == types.ZeroAddress || e.Address == addr
		})
		return err
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Transfer journal
// ──────────────────────────────────────────────────

func (s *Store) RecordTransfer(_ context.Context, r *transfer.Record) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketTransfers), journalKey(r.Timestamp, r.ID.String()), r)
	}))
}

func (s *Store) ListTransfers(_ context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error) {
	var result []*transfer.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		result, err = scanNewest(tx.Bucket(bucketTransfers), opts.Offset, opts.Limit, func(r *transfer.Record) bool {
			if addr != types.ZeroAddress && r.From != addr && r.To != addr {
				return false
			}
			return opts.Kind == "" || r.Kind == opts.Kind
		})
		return err
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

// Migrate creates the buckets.
func (s *Store) Migrate(_ context.Context) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("bolt: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	}))
}

func (s *Store) Ping(_ context.Context) error {
	return s.wrap(s.db.View(func(*bolt.Tx) error { return nil }))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// wrap maps bbolt's closed-database error onto the ledger sentinel.
func (s *Store) wrap(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return tokenledger.ErrStoreClosed
	}
	return err
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func timeKey(t time.Time) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return k
}

func journalKey(t time.Time, recordID string) []byte {
	return append(timeKey(t), recordID...)
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, encoded)
}

// scanNewest decodes values of b from the newest key and returns those
// matching match, honoring offset and limit.
func scanNewest[T any](b *bolt.Bucket, offset, limit int, match func(*T) bool) ([]*T, error) {
	result := make([]*T, 0)
	skipped := 0
	c := b.Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		item := new(T)
		if err := json.Unmarshal(v, item); err != nil {
			return nil, fmt.Errorf("bolt: decode %s: %w", k, err)
		}
		if !match(item) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, item)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
