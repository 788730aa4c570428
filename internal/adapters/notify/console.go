package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
)

// Console implementa ports.Notifier escribiendo líneas compactas a stdout.
// Es el notificador que siempre está activo; telegram es opcional encima.
type Console struct {
	out io.Writer
}

func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) stamp() string {
	return time.Now().Format("15:04:05")
}

func (c *Console) Started(context.Context) {
	fmt.Fprintf(c.out, "[%s] bot started\n", c.stamp())
}

func (c *Console) Stopped(_ context.Context, reason string) {
	fmt.Fprintf(c.out, "[%s] bot stopped: %s\n", c.stamp(), reason)
}

func (c *Console) OpportunityFound(_ context.Context, opp domain.ArbitrageOpportunity) {
	fmt.Fprintf(c.out, "[%s] opportunity %s\n", c.stamp(), opp)
}

func (c *Console) Executed(_ context.Context, res domain.ExecutionResult) {
	fmt.Fprintf(c.out, "[%s] filled %s\n", c.stamp(), res)
}

func (c *Console) ExecutionFailed(_ context.Context, res domain.ExecutionResult) {
	fmt.Fprintf(c.out, "[%s] failed %s\n", c.stamp(), res)
}

func (c *Console) BetSettled(_ context.Context, bet domain.Bet) {
	pnl := 0.0
	if bet.PnLUSDC != nil {
		pnl = *bet.PnLUSDC
	}
	fmt.Fprintf(c.out, "[%s] settled [%s] %s | P&L %+.2f\n",
		c.stamp(), bet.Outcome, bet.EventTitle, pnl)
}

func (c *Console) CreditsWarning(_ context.Context, remaining, threshold int) {
	fmt.Fprintf(c.out, "[%s] credits low: %d remaining (warn at %d)\n",
		c.stamp(), remaining, threshold)
}

func (c *Console) AutoStopped(_ context.Context, consecutiveLosses int, stats domain.LedgerStats) {
	fmt.Fprintf(c.out, "[%s] auto-stop: %d consecutive losses | total %d W:%d L:%d | P&L %+.2f\n",
		c.stamp(), consecutiveLosses, stats.Total, stats.Wins, stats.Losses, stats.TotalPnL)
}

var _ ports.Notifier = (*Console)(nil)

// WriteLedgerReport imprime el informe del ledger (modo -stats): los
// agregados y una tabla con las apuestas, pendientes primero.
func WriteLedgerReport(w io.Writer, stats domain.LedgerStats, bets []domain.Bet) {
	winRate := 0.0
	if settledN := stats.Wins + stats.Losses; settledN > 0 {
		winRate = float64(stats.Wins) / float64(settledN) * 100
	}
	fmt.Fprintf(w, "\nbets: %d  pending: %d  W:%d L:%d (%.0f%%)  total P&L: %+.2f USDC\n\n",
		stats.Total, stats.Pending, stats.Wins, stats.Losses, winRate, stats.TotalPnL)

	if len(bets) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Event", "Side", "Odds", "Entry", "Gap", "Stake", "Outcome", "P&L", "Placed")

	for _, b := range bets {
		pnl := "-"
		if b.PnLUSDC != nil {
			pnl = fmt.Sprintf("%+.2f", *b.PnLUSDC)
		}
		table.Append(
			fmt.Sprintf("%d", b.ID),
			b.EventTitle,
			b.BuyLabel,
			fmt.Sprintf("%.2f", b.Odds),
			fmt.Sprintf("%.2f", b.EntryPrice),
			fmt.Sprintf("%.2f", b.Gap),
			fmt.Sprintf("$%.0f", b.StakeUSDC),
			string(b.Outcome),
			pnl,
			b.PlacedAt.Format("01-02 15:04"),
		)
	}
	table.Render()
}
