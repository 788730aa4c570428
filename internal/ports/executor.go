package ports

import (
	"context"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// FOKOrderRequest describe una orden de mercado fill-or-kill de compra.
type FOKOrderRequest struct {
	TokenID    string
	AmountUSDC float64 // stake en USDC
	WorstPrice float64 // precio máximo aceptable (el ask observado)
	TickSize   float64
	NegRisk    bool
}

// FOKOrderResponse es la respuesta del venue a una orden FOK.
type FOKOrderResponse struct {
	OrderID string
	// Status es el estado crudo del venue: "matched" (ejecutada),
	// "delayed" (mercados deportivos con ventana de confirmación) u otro.
	Status string
	// NotFilled indica el rechazo esperado de una FOK sin liquidez.
	NotFilled bool
	ErrorMsg  string
}

// OrderExecutor firma y envía órdenes reales al CLOB.
type OrderExecutor interface {
	// PlaceFOKBuy envía una orden de mercado FOK. Un error aquí es de
	// transporte o del exchange; el no-fill esperado llega como
	// NotFilled=true sin error.
	PlaceFOKBuy(ctx context.Context, req FOKOrderRequest) (FOKOrderResponse, error)
}

// Notifier avisa al operador. Todas las llamadas son best-effort:
// un fallo de notificación nunca interrumpe el trading.
type Notifier interface {
	Started(ctx context.Context)
	Stopped(ctx context.Context, reason string)
	OpportunityFound(ctx context.Context, opp domain.ArbitrageOpportunity)
	Executed(ctx context.Context, res domain.ExecutionResult)
	ExecutionFailed(ctx context.Context, res domain.ExecutionResult)
	BetSettled(ctx context.Context, bet domain.Bet)
	CreditsWarning(ctx context.Context, remaining, threshold int)
	AutoStopped(ctx context.Context, consecutiveLosses int, stats domain.LedgerStats)
}
