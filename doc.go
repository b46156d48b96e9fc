// Package tokenledger provides a partial-lock token ledger for Go applications.
//
// Every account holds a total balance and a locked portion of it that cannot
// be transferred. Tokens become locked in two ways:
//
//   - A one-time seed grant per address, locked in full.
//   - Regeneration, which turns recorded off-ledger consumption into newly
//     minted, locked tokens and mints configured shares to the pledge fund,
//     DAO treasury and founder pool.
//
// The pledge fund additionally tracks a seed-derived credit: its share of
// regenerations triggered by seeded accounts. That credit can never be spent.
//
// # Quick Start
//
//	l := tokenledger.New(memory.New(),
//	    tokenledger.WithPledgeFund(pledge),
//	    tokenledger.WithSplit(regen.Split{PledgeBps: 1000, DAOBps: 500, FounderBps: 500}),
//	)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	if _, err := l.Initialize(ctx, operator, founder, devPool, dao); err != nil {
//	    log.Fatal(err)
//	}
//
// # Callers
//
// The identity of whoever sends a call travels in the context:
//
//	ctx = tokenledger.WithCaller(ctx, operator)
//	ev, err := l.Regenerate(ctx, user, tokenledger.Tokens(1))
//
// Regenerate, RegenerateAllEligible and the developer-pool operations require
// the mint authority. RecordAction accepts the subject address or the mint
// authority. Transfer and Gift move funds out of the caller's account.
//
// # Errors
//
// Rejected calls change nothing and return an error matching one of the
// sentinel errors with errors.Is, e.g. ErrCannotTransferLocked or ErrNotEligible.
//
// # Persistence
//
// Stores live under store/: memory, bolt, sqlite, postgres and mongo. Each
// commits all accounts touched by a call atomically.
package tokenledger
