package ports

import (
	"context"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// MarketCatalog lista los mercados binarios de partido que aceptan órdenes.
type MarketCatalog interface {
	// FetchSportMarkets devuelve los mercados aún no comenzados para el
	// tag de deporte dado (ej: "nba").
	FetchSportMarkets(ctx context.Context, tagSlug string) ([]domain.PredictionMarket, error)
}

// BookProvider lee el libro de órdenes de un token.
type BookProvider interface {
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}
