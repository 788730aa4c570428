package notify

import (
	"context"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
)

// Multi reparte cada evento a varios notificadores.
type Multi []ports.Notifier

// NewMulti ignora notificadores nil (ej: telegram sin configurar).
func NewMulti(ns ...ports.Notifier) Multi {
	var out Multi
	for _, n := range ns {
		switch v := n.(type) {
		case *Telegram:
			if v == nil {
				continue
			}
		case nil:
			continue
		}
		out = append(out, n)
	}
	return out
}

func (m Multi) Started(ctx context.Context) {
	for _, n := range m {
		n.Started(ctx)
	}
}

func (m Multi) Stopped(ctx context.Context, reason string) {
	for _, n := range m {
		n.Stopped(ctx, reason)
	}
}

func (m Multi) OpportunityFound(ctx context.Context, opp domain.ArbitrageOpportunity) {
	for _, n := range m {
		n.OpportunityFound(ctx, opp)
	}
}

func (m Multi) Executed(ctx context.Context, res domain.ExecutionResult) {
	for _, n := range m {
		n.Executed(ctx, res)
	}
}

func (m Multi) ExecutionFailed(ctx context.Context, res domain.ExecutionResult) {
	for _, n := range m {
		n.ExecutionFailed(ctx, res)
	}
}

func (m Multi) BetSettled(ctx context.Context, bet domain.Bet) {
	for _, n := range m {
		n.BetSettled(ctx, bet)
	}
}

func (m Multi) CreditsWarning(ctx context.Context, remaining, threshold int) {
	for _, n := range m {
		n.CreditsWarning(ctx, remaining, threshold)
	}
}

func (m Multi) AutoStopped(ctx context.Context, consecutiveLosses int, stats domain.LedgerStats) {
	for _, n := range m {
		n.AutoStopped(ctx, consecutiveLosses, stats)
	}
}

var _ ports.Notifier = Multi(nil)
