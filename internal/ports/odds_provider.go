package ports

import (
	"context"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// OddsProvider entrega las cuotas del bookmaker para los deportes activos.
type OddsProvider interface {
	// FetchAll devuelve los partidos próximos de todos los deportes
	// configurados, filtrados a los que tienen favorito. Las warnings son
	// avisos operacionales (crédito bajo) que no impiden el resultado.
	//
	// Errores esperados del gobernador de crédito:
	// oddsapi.ErrInsufficientCredits y *oddsapi.DailyLimitError.
	FetchAll(ctx context.Context) ([]domain.Game, []string, error)
}
