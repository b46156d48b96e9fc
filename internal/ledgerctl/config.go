// Package ledgerctl implements the operator CLI for a bolt-backed token ledger.
package ledgerctl

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/types"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	DBPath string `env:"LEDGER_DB_PATH" envDefault:"tokenledger.db"`

	MintAuthority types.Address `env:"GLOBAL_MINT_WALLET"`
	Founder       types.Address `env:"FOUNDER_WALLET"`
	DevPool       types.Address `env:"DEV_POOL_WALLET"`
	DAOTreasury   types.Address `env:"DAO_TREASURY_WALLET"`
	PledgeFund    types.Address `env:"PLEDGE_FUND_WALLET"`

	// Caller is the identity commands act as unless -as is given.
	Caller types.Address `env:"CALLER"`

	RegenInterval     time.Duration `env:"REGEN_INTERVAL" envDefault:"24h"`
	DisablePendingCap bool          `env:"DISABLE_PENDING_CAP"`
	PledgeBps         uint64        `env:"SPLIT_PLEDGE_BPS"`
	DAOBps            uint64        `env:"SPLIT_DAO_BPS"`
	FounderBps        uint64        `env:"SPLIT_FOUNDER_BPS"`

	SeedAmount    string `env:"SEED_AMOUNT" envDefault:"1"`
	GenesisSupply string `env:"GENESIS_SUPPLY" envDefault:"0"`

	TraceFeedPath string     `env:"TRACE_FEED_PATH"`
	LogLevel      slog.Level `env:"LOG_LEVEL" envDefault:"warn"`
}

// LoadConfig loads envFile when it exists and parses the environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ledgerOptions translates the config into engine options.
func (c Config) ledgerOptions() ([]tokenledger.Option, error) {
	seed, err := types.Parse(c.SeedAmount)
	if err != nil {
		return nil, tokenledger.ValidationError{Field: "SEED_AMOUNT", Message: err.Error()}
	}
	supply, err := types.Parse(c.GenesisSupply)
	if err != nil {
		return nil, tokenledger.ValidationError{Field: "GENESIS_SUPPLY", Message: err.Error()}
	}

	return []tokenledger.Option{
		tokenledger.WithPledgeFund(c.PledgeFund),
		tokenledger.WithSeedAmount(seed),
		tokenledger.WithGenesisSupply(supply),
		tokenledger.WithSplit(regen.Split{
			PledgeBps:  c.PledgeBps,
			DAOBps:     c.DAOBps,
			FounderBps: c.FounderBps,
		}),
		tokenledger.WithRegenParams(regen.Params{
			Interval:     c.RegenInterval,
			CapToPending: !c.DisablePendingCap,
		}),
	}, nil
}
