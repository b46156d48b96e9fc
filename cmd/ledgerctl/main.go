// Command ledgerctl operates a token ledger stored in a local bolt file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/tokenledger/internal/ledgerctl"
)

func main() {
	fs := flag.NewFlagSet("ledgerctl", flag.ExitOnError)
	fs.Usage = func() { ledgerctl.Usage(fs.Output()) }
	envFile := fs.String("env", ".env", "optional env file loaded before the environment")
	_ = fs.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	cfg, err := ledgerctl.LoadConfig(*envFile)
	if err != nil {
		exitf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledgerctl.Run(ctx, cfg, fs.Args(), os.Stdout, os.Stderr); err != nil {
		stop()
		exitf("ledgerctl: %v", err)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
