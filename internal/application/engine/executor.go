package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
)

// Executor convierte oportunidades en órdenes FOK y fills en filas del
// ledger. Nunca devuelve error: cada camino de fallo es un status del
// ExecutionResult, y el caller decide qué notificar.
type Executor struct {
	orders       ports.OrderExecutor
	ledger       ports.Ledger
	maxPositions int
	positions    *positionSet
	group        singleflight.Group
	logger       *slog.Logger
	now          func() time.Time
}

// NewExecutor precarga las posiciones abiertas desde el ledger, de modo
// que tras un reinicio los gates de duplicado y de límite siguen valiendo.
func NewExecutor(ctx context.Context, orders ports.OrderExecutor, ledger ports.Ledger, maxPositions int, logger *slog.Logger) (*Executor, error) {
	active, err := ledger.ActiveTokenIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: load active positions: %w", err)
	}
	return &Executor{
		orders:       orders,
		ledger:       ledger,
		maxPositions: maxPositions,
		positions:    newPositionSet(active),
		logger:       logger,
		now:          time.Now,
	}, nil
}

// OpenPositions devuelve el número de posiciones abiertas en memoria.
func (e *Executor) OpenPositions() int {
	return e.positions.count()
}

// Execute intenta comprar la oportunidad. Gates en orden: límite de
// posiciones, token duplicado. Después la orden FOK, y solo con fill
// confirmado (matched o delayed) se inserta la apuesta.
//
// Ejecuciones concurrentes del mismo token colapsan en una sola llamada
// al venue; las demás reciben el mismo resultado.
func (e *Executor) Execute(ctx context.Context, opp domain.ArbitrageOpportunity) domain.ExecutionResult {
	if e.positions.count() >= e.maxPositions {
		return e.result(opp, domain.ExecSkipped, "",
			fmt.Sprintf("max open positions reached (%d)", e.maxPositions))
	}

	v, _, _ := e.group.Do(opp.TokenID, func() (any, error) {
		return e.execute(ctx, opp), nil
	})
	return v.(domain.ExecutionResult)
}

func (e *Executor) execute(ctx context.Context, opp domain.ArbitrageOpportunity) domain.ExecutionResult {
	if !e.positions.reserve(opp.TokenID) {
		return e.result(opp, domain.ExecSkipped, "", "position already open for token")
	}

	market := opp.Matched.Market
	resp, err := e.orders.PlaceFOKBuy(ctx, ports.FOKOrderRequest{
		TokenID:    opp.TokenID,
		AmountUSDC: opp.StakeUSDC,
		WorstPrice: opp.BestAsk,
		TickSize:   market.TickSize,
		NegRisk:    market.NegRisk,
	})
	if err != nil {
		e.positions.release(opp.TokenID)
		e.logger.Error("fallo al colocar la orden", "token", opp.TokenID, "error", err)
		return e.result(opp, domain.ExecError, "", err.Error())
	}

	if resp.NotFilled {
		e.positions.release(opp.TokenID)
		e.logger.Info("orden FOK sin fill", "token", opp.TokenID, "reason", resp.ErrorMsg)
		return e.result(opp, domain.ExecFOKCancelled, resp.OrderID, resp.ErrorMsg)
	}

	status := domain.ExecutionStatus(resp.Status)
	if status != domain.ExecMatched && status != domain.ExecDelayed {
		e.positions.release(opp.TokenID)
		e.logger.Error("status inesperado del venue", "token", opp.TokenID, "status", resp.Status)
		return e.result(opp, domain.ExecError, resp.OrderID,
			fmt.Sprintf("unexpected order status %q", resp.Status))
	}

	bet := e.buildBet(opp, resp.OrderID)
	id, err := e.ledger.InsertBet(ctx, bet)
	if err != nil {
		// La orden ya está en el venue: la posición queda reservada y
		// el operador tiene que reconciliar a mano.
		e.logger.Error("fill sin registrar en el ledger", "order_id", resp.OrderID, "error", err)
		return e.result(opp, domain.ExecError, resp.OrderID,
			fmt.Sprintf("order filled but not recorded: %v", err))
	}

	e.logger.Info("apuesta registrada",
		"bet_id", id, "order_id", resp.OrderID, "status", resp.Status,
		"event", opp.EventTitle(), "stake", opp.StakeUSDC, "price", opp.BestAsk)
	return e.result(opp, status, resp.OrderID, "order filled")
}

func (e *Executor) buildBet(opp domain.ArbitrageOpportunity, orderID string) domain.Bet {
	game := opp.Matched.Game
	return domain.Bet{
		LocalID:      uuid.NewString(),
		SportID:      game.SportID,
		GameID:       game.GameID,
		EventTitle:   opp.EventTitle(),
		TokenID:      opp.TokenID,
		BuyLabel:     opp.Matched.BuyLabel(),
		FavoriteTeam: opp.FavoriteTeam(),
		Odds:         favoriteOdds(game),
		ImpliedProb:  opp.ImpliedProb,
		EntryPrice:   opp.BestAsk,
		Gap:          opp.Gap,
		StakeUSDC:    opp.StakeUSDC,
		OrderID:      orderID,
		CommenceTime: game.CommenceTime,
		PlacedAt:     e.now().UTC(),
		Outcome:      domain.OutcomePending,
	}
}

func (e *Executor) result(opp domain.ArbitrageOpportunity, status domain.ExecutionStatus, orderID, msg string) domain.ExecutionResult {
	return domain.ExecutionResult{
		Status:      status,
		OrderID:     orderID,
		Message:     msg,
		Opportunity: opp,
		Timestamp:   e.now(),
	}
}

func favoriteOdds(g domain.Game) float64 {
	if fav := g.Favorite(); fav != nil {
		return fav.Odds
	}
	return 0
}
