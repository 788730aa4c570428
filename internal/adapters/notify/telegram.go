package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
)

const telegramAPI = "https://api.telegram.org"

// Telegram implementa ports.Notifier sobre el Bot API de Telegram.
// Todos los envíos son best-effort: un fallo se loguea y el trading sigue.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewTelegram crea el notificador. Con token o chatID vacíos devuelve nil:
// el caller debe tratar nil como "sin telegram".
func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	if token == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// send entrega un mensaje HTML al chat configurado.
func (t *Telegram) send(ctx context.Context, text string) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.logger.Warn("telegram: marshal payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.logger.Warn("telegram: create request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("telegram: send", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.logger.Warn("telegram: unexpected status", "status", resp.StatusCode, "body", string(respBody))
	}
}

func (t *Telegram) Started(ctx context.Context) {
	t.send(ctx, "🟢 <b>polymoly started</b>\nwatching for odds gaps")
}

func (t *Telegram) Stopped(ctx context.Context, reason string) {
	t.send(ctx, fmt.Sprintf("🔴 <b>bot stopped</b>\n%s", reason))
}

func (t *Telegram) OpportunityFound(ctx context.Context, opp domain.ArbitrageOpportunity) {
	t.send(ctx, fmt.Sprintf(
		"⚡ <b>opportunity</b>\nmarket: %s\nfavorite: %s (%.2f / %.1f%%)\nask: %.2f  gap: %.2f\nliquidity: %.0f  stake: $%.0f\nbuy: %s",
		opp.EventTitle(), opp.FavoriteTeam(),
		opp.Matched.Game.Favorite().Odds, opp.ImpliedProb*100,
		opp.BestAsk, opp.Gap, opp.LiquidityShares, opp.StakeUSDC,
		opp.Matched.BuyLabel(),
	))
}

func (t *Telegram) Executed(ctx context.Context, res domain.ExecutionResult) {
	opp := res.Opportunity
	t.send(ctx, fmt.Sprintf(
		"✅ <b>order filled</b>\nmarket: %s\nfavorite: %s | buy: %s\n$%.0f @ %.2f\norder_id: %s",
		opp.EventTitle(), opp.FavoriteTeam(), opp.Matched.BuyLabel(),
		opp.StakeUSDC, opp.BestAsk, res.OrderID,
	))
}

func (t *Telegram) ExecutionFailed(ctx context.Context, res domain.ExecutionResult) {
	t.send(ctx, fmt.Sprintf(
		"❌ <b>order failed</b> [%s]\nmarket: %s\n%s",
		res.Status, res.Opportunity.EventTitle(), res.Message,
	))
}

func (t *Telegram) BetSettled(ctx context.Context, bet domain.Bet) {
	icon := "🏆"
	if bet.Outcome == domain.OutcomeLoss {
		icon = "💀"
	}
	pnl := 0.0
	if bet.PnLUSDC != nil {
		pnl = *bet.PnLUSDC
	}
	t.send(ctx, fmt.Sprintf(
		"%s <b>settled</b> [%s]\nmarket: %s\nP&L: %+.2f",
		icon, bet.Outcome, bet.EventTitle, pnl,
	))
}

func (t *Telegram) CreditsWarning(ctx context.Context, remaining, threshold int) {
	t.send(ctx, fmt.Sprintf(
		"⚠️ <b>odds API credits low</b>\nremaining: %d (warn threshold: %d)",
		remaining, threshold,
	))
}

func (t *Telegram) AutoStopped(ctx context.Context, consecutiveLosses int, stats domain.LedgerStats) {
	t.send(ctx, fmt.Sprintf(
		"🚨 <b>%d consecutive losses — bot stopped</b>\ntotal bets: %d | wins: %d / losses: %d\ntotal P&L: %+.2f",
		consecutiveLosses, stats.Total, stats.Wins, stats.Losses, stats.TotalPnL,
	))
}

var _ ports.Notifier = (*Telegram)(nil)
