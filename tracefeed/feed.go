// Package tracefeed mirrors ledger events into a JSON-lines file, one
// object per event. Files rotate through lumberjack.
package tracefeed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Feed)(nil)
	_ plugin.OnShutdown             = (*Feed)(nil)
	_ plugin.OnInitialized          = (*Feed)(nil)
	_ plugin.OnSeedGranted          = (*Feed)(nil)
	_ plugin.OnLockedTokensUnlocked = (*Feed)(nil)
	_ plugin.OnActionRecorded       = (*Feed)(nil)
	_ plugin.OnRegenerated          = (*Feed)(nil)
	_ plugin.OnTransferred          = (*Feed)(nil)
)

// Event types written to the feed.
const (
	TypeInitialized          = "Initialized"
	TypeSeedGranted          = "SeedGranted"
	TypeLockedTokensUnlocked = "LockedTokensUnlocked"
	TypeActionRecorded       = "ActionRecorded"
	TypeRegenerated          = "Regenerated"
	TypeTransfer             = "Transfer"
	TypeGifted               = "Gifted"
	TypeDevTokensGranted     = "DevTokensGranted"
	TypePledgeSpent          = "PledgeSpent"
)

// Config controls the rotating feed file.
type Config struct {
	// Path of the active feed file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// MaxSizeMB rotates the file once it reaches this size. Defaults to 100.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`

	// MaxAgeDays removes rotated files older than this. Zero keeps all.
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `json:"compress" yaml:"compress" mapstructure:"compress"`
}

// Feed is a ledger plugin writing one JSON line per event.
type Feed struct {
	log    *zap.Logger
	closer func() error
}

// Open creates a Feed writing to the rotating file described by cfg.
func Open(cfg Config) (*Feed, error) {
	if cfg.Path == "" {
		return nil, errors.New("tracefeed: path is required")
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	f := NewWithWriter(zapcore.AddSync(lj))
	f.closer = lj.Close
	return f, nil
}

// NewWithWriter creates a Feed on an arbitrary sink.
func NewWithWriter(w zapcore.WriteSyncer) *Feed {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "type",
		TimeKey:        "timestamp",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	return &Feed{
		log:    zap.New(zapcore.NewCore(enc, zapcore.Lock(w), zapcore.InfoLevel)),
		closer: func() error { return nil },
	}
}

// Name implements plugin.Plugin.
func (f *Feed) Name() string { return "tracefeed" }

// OnShutdown implements plugin.OnShutdown.
func (f *Feed) OnShutdown(_ context.Context) error {
	return f.Close()
}

// Close flushes and closes the underlying file.
func (f *Feed) Close() error {
	_ = f.log.Sync() //nolint:errcheck // sync on a closed or non-file sink is not fatal
	return f.closer()
}

// OnInitialized implements plugin.OnInitialized.
func (f *Feed) OnInitialized(_ context.Context, w *account.Wallets) error {
	f.log.Info(TypeInitialized,
		addr("mintAuthority", w.MintAuthority),
		addr("founder", w.Founder),
		addr("devPool", w.DevPool),
		addr("daoTreasury", w.DAOTreasury),
		addr("pledgeFund", w.PledgeFund),
	)
	return nil
}

// OnSeedGranted implements plugin.OnSeedGranted.
func (f *Feed) OnSeedGranted(_ context.Context, user types.Address, amount types.Amount) error {
	f.log.Info(TypeSeedGranted, addr("user", user), tokens("amount", amount))
	return nil
}

// OnLockedTokensUnlocked implements plugin.OnLockedTokensUnlocked.
func (f *Feed) OnLockedTokensUnlocked(_ context.Context, user types.Address, amount types.Amount) error {
	f.log.Info(TypeLockedTokensUnlocked, addr("user", user), tokens("amount", amount))
	return nil
}

// OnActionRecorded implements plugin.OnActionRecorded.
func (f *Feed) OnActionRecorded(_ context.Context, rec *action.Record) error {
	f.log.Info(TypeActionRecorded,
		zap.String("id", rec.ID.String()),
		addr("user", rec.Address),
		zap.Uint8("actionType", uint8(rec.Kind)),
		tokens("amount", rec.Amount),
	)
	return nil
}

// OnRegenerated implements plugin.OnRegenerated.
func (f *Feed) OnRegenerated(_ context.Context, e *regen.Event) error {
	f.log.Info(TypeRegenerated,
		zap.String("id", e.ID.String()),
		addr("user", e.Address),
		tokens("requested", e.Requested),
		tokens("userShare", e.Shares.User),
		tokens("pledgeShare", e.Shares.Pledge),
		tokens("daoShare", e.Shares.DAO),
		tokens("founderShare", e.Shares.Founder),
		tokens("seedDerived", e.SeedDerived),
		zap.Bool("selfService", e.SelfService),
	)
	return nil
}

// OnTransferred implements plugin.OnTransferred.
func (f *Feed) OnTransferred(_ context.Context, r *transfer.Record) error {
	typ := TypeTransfer
	switch r.Kind {
	case transfer.KindGift:
		typ = TypeGifted
	case transfer.KindDevGrant:
		typ = TypeDevTokensGranted
	case transfer.KindPledgeSpend:
		typ = TypePledgeSpent
	}

	fields := []zap.Field{
		zap.String("id", r.ID.String()),
		addr("from", r.From),
		addr("to", r.To),
		tokens("amount", r.Amount),
	}
	if r.Memo != "" {
		fields = append(fields, zap.String("memo", r.Memo))
	}
	f.log.Info(typ, fields...)
	return nil
}

func addr(key string, a types.Address) zap.Field {
	return zap.String(key, a.Hex())
}

// tokens renders whole-token display amounts, e.g. "2.1".
func tokens(key string, a types.Amount) zap.Field {
	return zap.String(key, a.String())
}
