package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polymoly/internal/adapters/notify"
	"github.com/alejandrodnm/polymoly/internal/domain"
)

func TestConsoleBetSettled(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	pnl := 24.44
	now := time.Now()
	c.BetSettled(context.Background(), domain.Bet{
		EventTitle: "Heat vs. 76ers",
		Outcome:    domain.OutcomeWin,
		PnLUSDC:    &pnl,
		SettledAt:  &now,
	})

	out := buf.String()
	assert.Contains(t, out, "settled [win]")
	assert.Contains(t, out, "Heat vs. 76ers")
	assert.Contains(t, out, "+24.44")
}

func TestConsoleAutoStopped(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.AutoStopped(context.Background(), 3, domain.LedgerStats{
		Total: 7, Wins: 2, Losses: 5, TotalPnL: -42.50,
	})

	out := buf.String()
	assert.Contains(t, out, "3 consecutive losses")
	assert.Contains(t, out, "W:2 L:5")
	assert.Contains(t, out, "-42.50")
}

func TestWriteLedgerReport(t *testing.T) {
	var buf bytes.Buffer
	pnl := -20.0
	bets := []domain.Bet{
		{
			ID: 1, EventTitle: "Heat vs. 76ers", BuyLabel: "YES",
			Odds: 1.40, EntryPrice: 0.45, Gap: 0.26, StakeUSDC: 20,
			Outcome: domain.OutcomePending, PlacedAt: time.Now(),
		},
		{
			ID: 2, EventTitle: "Celtics vs. Knicks", BuyLabel: "NO",
			Odds: 1.50, EntryPrice: 0.40, Gap: 0.27, StakeUSDC: 20,
			Outcome: domain.OutcomeLoss, PnLUSDC: &pnl, PlacedAt: time.Now(),
		},
	}

	notify.WriteLedgerReport(&buf, domain.LedgerStats{
		Total: 2, Pending: 1, Losses: 1, TotalPnL: -20,
	}, bets)

	out := buf.String()
	assert.Contains(t, out, "bets: 2")
	assert.Contains(t, out, "pending: 1")
	assert.Contains(t, out, "Heat vs. 76ers")
	assert.Contains(t, out, "Celtics vs. Knicks")
	assert.Contains(t, out, "-20.00")
}

func TestWriteLedgerReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	notify.WriteLedgerReport(&buf, domain.LedgerStats{}, nil)
	assert.Contains(t, buf.String(), "bets: 0")
}
