package ledgerctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store/bolt"
	"github.com/xraph/tokenledger/tracefeed"
	"github.com/xraph/tokenledger/types"
)

// invocation carries one parsed command.
type invocation struct {
	ctx    context.Context
	l      *tokenledger.Ledger
	cfg    Config
	out    io.Writer
	args   []string
	caller types.Address
	memo   string
	kind   uint
}

type command struct {
	usage string
	nargs int
	run   func(*invocation) error
}

var commands = map[string]command{
	"init":         {"init", 0, runInit},
	"seed":         {"seed <address>", 1, runSeed},
	"act":          {"act [-as caller] [-kind n] <address> <amount>", 2, runAct},
	"regen":        {"regen [-as caller] <address> <amount>", 2, runRegen},
	"regen-self":   {"regen-self [-as caller]", 0, runRegenSelf},
	"regen-all":    {"regen-all [-as caller]", 0, runRegenAll},
	"transfer":     {"transfer [-as caller] <to> <amount>", 2, runTransfer},
	"gift":         {"gift [-as caller] [-memo text] <to> <amount>", 2, runGift},
	"dev-grant":    {"dev-grant [-as caller] <to> <amount>", 2, runDevGrant},
	"dev-unlock":   {"dev-unlock [-as caller] <address>", 1, runDevUnlock},
	"pledge-spend": {"pledge-spend [-as caller] [-memo text] <to> <amount>", 2, runPledgeSpend},
	"pledge":       {"pledge", 0, runPledgeStatus},
	"inspect":      {"inspect <address>", 1, runInspect},
	"trace":        {"trace", 0, runTrace},
}

// Usage writes the command list to w.
func Usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: ledgerctl [-env file] <command> [flags] [args]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// Run opens the ledger at cfg.DBPath, executes one command and closes the ledger.
func Run(ctx context.Context, cfg Config, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		Usage(errOut)
		return errors.New("no command given")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		Usage(errOut)
		return fmt.Errorf("unknown command %q", args[0])
	}

	inv := &invocation{ctx: ctx, cfg: cfg, out: out}
	if err := inv.parse(args[0], args[1:], errOut); err != nil {
		return err
	}
	if len(inv.args) != cmd.nargs {
		return fmt.Errorf("usage: ledgerctl %s", cmd.usage)
	}

	// trace reads the feed file and needs no ledger.
	if args[0] == "trace" {
		return cmd.run(inv)
	}

	l, err := open(ctx, cfg, errOut)
	if err != nil {
		return err
	}
	inv.l = l

	runErr := cmd.run(inv)
	if err := l.Stop(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close ledger: %w", err)
	}
	return runErr
}

func (inv *invocation) parse(name string, args []string, errOut io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	as := fs.String("as", "", "caller address (default: $CALLER)")
	fs.StringVar(&inv.memo, "memo", "", "memo attached to gifts and pledge spends")
	fs.UintVar(&inv.kind, "kind", 0, "action kind, 0-255")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if inv.kind > 255 {
		return fmt.Errorf("-kind %d exceeds 255", inv.kind)
	}

	inv.caller = inv.cfg.Caller
	if *as != "" {
		addr, err := types.ParseAddress(*as)
		if err != nil {
			return fmt.Errorf("-as: %w", err)
		}
		inv.caller = addr
	}
	inv.args = fs.Args()
	return nil
}

// open starts a ledger on the bolt database in cfg.
func open(ctx context.Context, cfg Config, errOut io.Writer) (*tokenledger.Ledger, error) {
	opts, err := cfg.ledgerOptions()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.LogLevel}))
	opts = append(opts, tokenledger.WithLogger(logger))

	if cfg.TraceFeedPath != "" {
		feed, err := tracefeed.Open(tracefeed.Config{Path: cfg.TraceFeedPath})
		if err != nil {
			return nil, err
		}
		opts = append(opts, tokenledger.WithPlugin(feed))
	}

	s, err := bolt.Open(cfg.DBPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}

	l := tokenledger.New(s, opts...)
	if err := l.Start(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return l, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (inv *invocation) address(i int) (types.Address, error) {
	addr, err := types.ParseAddress(inv.args[i])
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return addr, nil
}

func (inv *invocation) amount(i int) (types.Amount, error) {
	a, err := types.Parse(inv.args[i])
	if err != nil {
		return types.Zero(), fmt.Errorf("argument %d: %w", i+1, err)
	}
	return a, nil
}

// target parses "<address> <amount>".
func (inv *invocation) target() (types.Address, types.Amount, error) {
	addr, err := inv.address(0)
	if err != nil {
		return addr, types.Zero(), err
	}
	amount, err := inv.amount(1)
	return addr, amount, err
}

// as returns the command context carrying the caller.
func (inv *invocation) as() context.Context {
	if inv.caller == types.ZeroAddress {
		return inv.ctx
	}
	return tokenledger.WithCaller(inv.ctx, inv.caller)
}

func (inv *invocation) printf(format string, args ...any) {
	fmt.Fprintf(inv.out, format, args...)
}

// ──────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────

func runInit(inv *invocation) error {
	c := inv.cfg
	w, err := inv.l.Initialize(inv.ctx, c.MintAuthority, c.Founder, c.DevPool, c.DAOTreasury)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(inv.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mint authority\t%s\n", w.MintAuthority.Hex())
	fmt.Fprintf(tw, "founder pool\t%s\n", w.Founder.Hex())
	fmt.Fprintf(tw, "developer pool\t%s\n", w.DevPool.Hex())
	fmt.Fprintf(tw, "dao treasury\t%s\n", w.DAOTreasury.Hex())
	fmt.Fprintf(tw, "pledge fund\t%s\n", w.PledgeFund.Hex())
	return tw.Flush()
}

func runSeed(inv *invocation) error {
	addr, err := inv.address(0)
	if err != nil {
		return err
	}
	if err := inv.l.GrantSeed(inv.ctx, addr); err != nil {
		return err
	}
	inv.printf("seeded %s\n", addr.Hex())
	return nil
}

func runAct(inv *invocation) error {
	addr, amount, err := inv.target()
	if err != nil {
		return err
	}
	rec, err := inv.l.RecordAction(inv.as(), addr, amount, tokenledger.WithActionKind(action.Kind(inv.kind)))
	if err != nil {
		return err
	}
	pending, err := inv.l.PendingConsumption(inv.ctx, addr)
	if err != nil {
		return err
	}
	inv.printf("recorded %s (%s), pending %s\n", rec.ID, amount, pending)
	return nil
}

func runRegen(inv *invocation) error {
	addr, amount, err := inv.target()
	if err != nil {
		return err
	}
	e, err := inv.l.Regenerate(inv.as(), addr, amount)
	if err != nil {
		return err
	}
	printRegen(inv, e)
	return nil
}

func runRegenSelf(inv *invocation) error {
	e, err := inv.l.RegenerateSelf(inv.as())
	if err != nil {
		return err
	}
	printRegen(inv, e)
	return nil
}

func runRegenAll(inv *invocation) error {
	events, err := inv.l.RegenerateAllEligible(inv.as())
	for _, e := range events {
		printRegen(inv, e)
	}
	if errors.Is(err, tokenledger.ErrNothingEligible) {
		inv.printf("no eligible accounts\n")
		return nil
	}
	return err
}

func printRegen(inv *invocation, e *regen.Event) {
	inv.printf("regenerated %s for %s (pledge %s, dao %s, founder %s)\n",
		e.Amount, e.Address.Hex(), e.Shares.Pledge, e.Shares.DAO, e.Shares.Founder)
}

func runTransfer(inv *invocation) error {
	to, amount, err := inv.target()
	if err != nil {
		return err
	}
	rec, err := inv.l.Transfer(inv.as(), to, amount)
	if err != nil {
		return err
	}
	inv.printf("%s %s -> %s: %s\n", rec.ID, rec.From.Hex(), rec.To.Hex(), rec.Amount)
	return nil
}

func runGift(inv *invocation) error {
	to, amount, err := inv.target()
	if err != nil {
		return err
	}
	rec, err := inv.l.Gift(inv.as(), to, amount, inv.memo)
	if err != nil {
		return err
	}
	inv.printf("%s %s -> %s: %s gifted\n", rec.ID, rec.From.Hex(), rec.To.Hex(), rec.Amount)
	return nil
}

func runDevGrant(inv *invocation) error {
	to, amount, err := inv.target()
	if err != nil {
		return err
	}
	rec, err := inv.l.GrantLockedDevTokens(inv.as(), to, amount)
	if err != nil {
		return err
	}
	inv.printf("%s granted %s locked to %s\n", rec.ID, rec.Amount, rec.To.Hex())
	return nil
}

func runDevUnlock(inv *invocation) error {
	addr, err := inv.address(0)
	if err != nil {
		return err
	}
	released, err := inv.l.UnlockDevTokens(inv.as(), addr)
	if err != nil {
		return err
	}
	inv.printf("unlocked %s for %s\n", released, addr.Hex())
	return nil
}

func runPledgeSpend(inv *invocation) error {
	to, amount, err := inv.target()
	if err != nil {
		return err
	}
	rec, err := inv.l.SpendPledge(inv.as(), to, amount, inv.memo)
	if err != nil {
		return err
	}
	inv.printf("%s pledge fund -> %s: %s\n", rec.ID, rec.To.Hex(), rec.Amount)
	return nil
}

func runPledgeStatus(inv *invocation) error {
	s, err := inv.l.PledgeStatus(inv.ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(inv.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "balance\t%s\n", s.Balance)
	fmt.Fprintf(tw, "seed-derived\t%s\n", s.SeedDerived)
	fmt.Fprintf(tw, "spendable\t%s\n", s.Spendable)
	return tw.Flush()
}

func runInspect(inv *invocation) error {
	addr, err := inv.address(0)
	if err != nil {
		return err
	}
	a, err := inv.l.Account(inv.ctx, addr)
	if err != nil {
		return err
	}
	next, err := inv.l.NextRegenAt(inv.ctx, addr)
	if err != nil {
		return err
	}

	nextRegen := "now"
	if !next.IsZero() {
		nextRegen = next.UTC().Format(time.RFC3339)
	}

	tw := tabwriter.NewWriter(inv.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "address\t%s\n", a.Address.Hex())
	fmt.Fprintf(tw, "state\t%s\n", a.State())
	fmt.Fprintf(tw, "balance\t%s\n", a.Balance)
	fmt.Fprintf(tw, "locked\t%s\n", a.Locked)
	fmt.Fprintf(tw, "seed-locked\t%s\n", a.SeedLocked)
	fmt.Fprintf(tw, "transferable\t%s\n", a.Transferable())
	fmt.Fprintf(tw, "pending\t%s\n", a.PendingConsumption)
	fmt.Fprintf(tw, "next regeneration\t%s\n", nextRegen)
	return tw.Flush()
}

func runTrace(inv *invocation) error {
	if inv.cfg.TraceFeedPath == "" {
		return errors.New("TRACE_FEED_PATH is not set")
	}
	f, err := os.Open(inv.cfg.TraceFeedPath)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := tracefeed.Read(f)
	if err != nil {
		return err
	}
	for _, e := range entries {
		subject := e.User
		if subject == "" && e.From != "" {
			subject = e.From + " -> " + e.To
		}
		line := []string{e.Timestamp.UTC().Format(time.RFC3339), e.Type}
		if subject != "" {
			line = append(line, subject)
		}
		if e.Amount != "" {
			line = append(line, e.Amount)
		}
		inv.printf("%s\n", strings.Join(line, "  "))
	}
	return nil
}
