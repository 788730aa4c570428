package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
)

// ErrAutoStopped lo devuelve Monitor.Run cuando la racha de derrotas
// dispara el circuit breaker. El caller debe cancelar el loop de trading.
var ErrAutoStopped = errors.New("engine: circuit breaker tripped")

// MonitorConfig son los umbrales de liquidación.
type MonitorConfig struct {
	Interval             time.Duration
	WinThreshold         float64 // best bid >= → win
	LossThreshold        float64 // best bid <= → loss
	MaxConsecutiveLosses int
}

// Monitor liquida las apuestas pending leyendo el orderbook: un mercado
// deportivo resuelto colapsa el precio a ~1.00 o ~0.00, así que el best
// bid del token basta para saber el resultado sin API de resoluciones.
type Monitor struct {
	ledger    ports.Ledger
	books     ports.BookProvider
	notifier  ports.Notifier
	positions *positionSet
	cfg       MonitorConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewMonitor construye el loop de liquidación. Comparte el positionSet
// del executor para liberar el token cuando la apuesta se liquida.
func NewMonitor(ledger ports.Ledger, books ports.BookProvider, notifier ports.Notifier, exec *Executor, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		ledger:    ledger,
		books:     books,
		notifier:  notifier,
		positions: exec.positions,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ejecuta el loop de liquidación hasta que el contexto se cancele o
// el circuit breaker dispare (ErrAutoStopped).
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrAutoStopped) {
				return err
			}
			m.logger.Warn("ciclo de liquidación con error", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce revisa todas las apuestas pending una vez. Tras cada liquidación
// reevalúa la racha de derrotas; si alcanza el máximo persiste la señal de
// parada y devuelve ErrAutoStopped.
func (m *Monitor) RunOnce(ctx context.Context) error {
	pending, err := m.ledger.PendingBets(ctx)
	if err != nil {
		return fmt.Errorf("monitor: pending bets: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	m.logger.Debug("revisando apuestas pending", "count", len(pending))

	for _, bet := range pending {
		settled, err := m.checkBet(ctx, bet)
		if err != nil {
			m.logger.Warn("no se pudo revisar la apuesta",
				"bet_id", bet.ID, "event", bet.EventTitle, "error", err)
			continue
		}
		if !settled {
			continue
		}
		if err := m.checkBreaker(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkBet liquida una apuesta si el orderbook ya delata el resultado.
// Devuelve true solo si ESTA llamada la liquidó: con dos procesos contra
// el mismo ledger, exactamente uno gana el UPDATE y notifica.
func (m *Monitor) checkBet(ctx context.Context, bet domain.Bet) (bool, error) {
	book, err := m.books.FetchOrderBook(ctx, bet.TokenID)
	if err != nil {
		return false, fmt.Errorf("orderbook %s: %w", bet.TokenID, err)
	}

	// Un libro sin bids es señal indeterminada (hueco transitorio del
	// feed), no una derrota: la apuesta espera al próximo tick.
	bid := book.BestBid()
	if bid <= 0 {
		return false, nil
	}

	var outcome domain.BetOutcome
	var pnl float64
	switch {
	case bid >= m.cfg.WinThreshold:
		outcome, pnl = domain.OutcomeWin, bet.WinPnL()
	case bid <= m.cfg.LossThreshold:
		outcome, pnl = domain.OutcomeLoss, -bet.StakeUSDC
	default:
		return false, nil
	}

	settled, err := m.ledger.SettleBet(ctx, bet.ID, outcome, pnl)
	if err != nil {
		return false, fmt.Errorf("settle bet %d: %w", bet.ID, err)
	}
	if !settled {
		return false, nil
	}

	m.positions.release(bet.TokenID)
	m.logger.Info("apuesta liquidada",
		"bet_id", bet.ID, "event", bet.EventTitle, "outcome", outcome,
		"pnl", fmt.Sprintf("%.2f", pnl), "best_bid", bid)

	now := m.now().UTC()
	bet.Outcome = outcome
	bet.PnLUSDC = &pnl
	bet.SettledAt = &now
	m.notifier.BetSettled(ctx, bet)
	return true, nil
}

func (m *Monitor) checkBreaker(ctx context.Context) error {
	losses, err := m.ledger.ConsecutiveLosses(ctx)
	if err != nil {
		return fmt.Errorf("monitor: consecutive losses: %w", err)
	}
	if losses < m.cfg.MaxConsecutiveLosses {
		return nil
	}

	reason := fmt.Sprintf("%d derrotas consecutivas", losses)
	if err := m.ledger.SetStopFlag(ctx, reason); err != nil {
		m.logger.Error("no se pudo persistir la señal de parada", "error", err)
	}

	stats, err := m.ledger.Stats(ctx)
	if err != nil {
		m.logger.Warn("stats no disponibles para el aviso de parada", "error", err)
	}
	m.notifier.AutoStopped(ctx, losses, stats)
	m.logger.Error("circuit breaker disparado", "losses", losses)
	return ErrAutoStopped
}
