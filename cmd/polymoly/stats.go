package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/polymoly/internal/adapters/notify"
	"github.com/alejandrodnm/polymoly/internal/adapters/storage"
)

// runStats imprime el informe del ledger y sale (modo -stats).
func runStats(ledger *storage.SQLiteLedger) {
	ctx := context.Background()

	stats, err := ledger.Stats(ctx)
	if err != nil {
		slog.Error("failed to read ledger stats", "err", err)
		os.Exit(1)
	}
	bets, err := ledger.AllBets(ctx)
	if err != nil {
		slog.Error("failed to read bets", "err", err)
		os.Exit(1)
	}

	notify.WriteLedgerReport(os.Stdout, stats, bets)
}
