package ports

import (
	"context"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// Ledger es el registro durable de apuestas. Única fuente de verdad:
// el estado en memoria se reconstruye desde aquí tras un reinicio.
type Ledger interface {
	// InsertBet inserta una apuesta pending y devuelve su rowid.
	InsertBet(ctx context.Context, bet domain.Bet) (int64, error)

	// SettleBet escribe outcome y P&L de una apuesta pending.
	// Idempotente: liquidar una apuesta ya liquidada no hace nada y
	// devuelve false.
	SettleBet(ctx context.Context, betID int64, outcome domain.BetOutcome, pnlUSDC float64) (bool, error)

	// PendingBets devuelve las apuestas sin liquidar, más antiguas primero.
	PendingBets(ctx context.Context) ([]domain.Bet, error)

	// AllBets devuelve el historial completo: pendientes primero, después
	// las liquidadas más recientes.
	AllBets(ctx context.Context) ([]domain.Bet, error)

	// ActiveTokenIDs devuelve los token ids con posición abierta.
	ActiveTokenIDs(ctx context.Context) (map[string]bool, error)

	// ConsecutiveLosses cuenta las derrotas consecutivas desde la
	// liquidación más reciente hacia atrás, parando en el primer no-loss.
	ConsecutiveLosses(ctx context.Context) (int, error)

	// Stats devuelve los agregados del ledger.
	Stats(ctx context.Context) (domain.LedgerStats, error)

	// SetStopFlag persiste la señal de parada del circuit breaker.
	SetStopFlag(ctx context.Context, reason string) error

	// StopFlag devuelve la señal de parada persistida, si existe.
	StopFlag(ctx context.Context) (bool, string, error)

	Close() error
}
