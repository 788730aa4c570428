// Package scanner detecta divergencias de precio entre el feed de cuotas
// y Polymarket. Cuatro gates, en orden, todos obligatorios:
//
//	gate 1: ventana de entrada — el partido empieza en [deadline, window] horas
//	gate 2: precio — best ask del token del favorito < MaxPrice
//	gate 3: gap — probabilidad implícita - best ask >= MinGap
//	gate 4: liquidez — shares cerca del best ask >= MinLiquidity
package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
)

// Config contiene los umbrales de los gates.
type Config struct {
	EntryWindowHrs   float64 // gate 1: máximo de horas antes del partido
	EntryDeadlineHrs float64 // gate 1: mínimo de horas antes del partido
	MaxPrice         float64 // gate 2
	MinGap           float64 // gate 3
	MinLiquidity     float64 // gate 4: shares
	LiquidityLevels  int     // niveles de ask que cuentan para el gate 4
	StakeTiers       []domain.StakeTier
}

// ScanStats cuenta por qué se descartó cada partido emparejado.
// Un partido incrementa exactamente un contador.
type ScanStats struct {
	Scanned      int
	TooEarly     int // gate 1: fuera de la ventana
	PastDeadline int // gate 1: demasiado cerca del comienzo
	BookError    int // fallo al leer el orderbook
	NoAsk        int // libro vacío
	PriceTooHigh int // gate 2
	GapTooSmall  int // gate 3
	ThinBook     int // gate 4
	Found        int
}

// Scanner aplica los gates sobre los partidos emparejados.
type Scanner struct {
	cfg    Config
	books  ports.BookProvider
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, books ports.BookProvider, logger *slog.Logger) *Scanner {
	return &Scanner{cfg: cfg, books: books, logger: logger, now: time.Now}
}

// Scan evalúa cada partido emparejado y devuelve las oportunidades que
// pasan los cuatro gates. Un error de orderbook descarta solo ese partido.
func (s *Scanner) Scan(ctx context.Context, matched []domain.MatchedGame) ([]domain.ArbitrageOpportunity, ScanStats) {
	var opps []domain.ArbitrageOpportunity
	stats := ScanStats{Scanned: len(matched)}

	for _, mg := range matched {
		opp, ok := s.check(ctx, mg, &stats)
		if !ok {
			continue
		}
		stats.Found++
		opps = append(opps, opp)
		s.logger.Info("oportunidad detectada", "opportunity", opp.String())
	}

	s.logger.Info("scan completado",
		"scanned", stats.Scanned, "found", stats.Found,
		"too_early", stats.TooEarly, "past_deadline", stats.PastDeadline,
		"price_high", stats.PriceTooHigh, "gap_small", stats.GapTooSmall,
		"thin_book", stats.ThinBook, "book_errors", stats.BookError,
	)
	return opps, stats
}

func (s *Scanner) check(ctx context.Context, mg domain.MatchedGame, stats *ScanStats) (domain.ArbitrageOpportunity, bool) {
	game := mg.Game

	// gate 1: ventana de entrada
	hrs := game.CommenceTime.Sub(s.now()).Hours()
	if hrs > s.cfg.EntryWindowHrs {
		stats.TooEarly++
		return domain.ArbitrageOpportunity{}, false
	}
	if hrs < s.cfg.EntryDeadlineHrs {
		stats.PastDeadline++
		return domain.ArbitrageOpportunity{}, false
	}

	tokenID := mg.BuyTokenID()
	book, err := s.books.FetchOrderBook(ctx, tokenID)
	if err != nil {
		stats.BookError++
		s.logger.Warn("orderbook no disponible", "token", tokenID, "error", err)
		return domain.ArbitrageOpportunity{}, false
	}

	bestAsk := book.BestAsk()
	if bestAsk <= 0 {
		stats.NoAsk++
		return domain.ArbitrageOpportunity{}, false
	}

	// gate 2: precio
	if bestAsk >= s.cfg.MaxPrice {
		stats.PriceTooHigh++
		return domain.ArbitrageOpportunity{}, false
	}

	// gate 3: gap
	prob := game.Favorite().ImpliedProb
	gap := prob - bestAsk
	if gap < s.cfg.MinGap {
		stats.GapTooSmall++
		return domain.ArbitrageOpportunity{}, false
	}

	// gate 4: liquidez cerca del best ask
	shares := book.AskLiquidity(s.cfg.LiquidityLevels)
	if shares < s.cfg.MinLiquidity {
		stats.ThinBook++
		return domain.ArbitrageOpportunity{}, false
	}

	stake := domain.StakeForGap(s.cfg.StakeTiers, gap)
	if stake <= 0 {
		// la tabla de tiers empieza en MinGap, así que con gate 3 pasado
		// esto solo ocurre con una tabla mal configurada
		stats.GapTooSmall++
		return domain.ArbitrageOpportunity{}, false
	}

	return domain.ArbitrageOpportunity{
		Matched:         mg,
		TokenID:         tokenID,
		BestAsk:         bestAsk,
		ImpliedProb:     prob,
		Gap:             gap,
		LiquidityShares: shares,
		StakeUSDC:       stake,
		DetectedAt:      s.now().UTC(),
	}, true
}
