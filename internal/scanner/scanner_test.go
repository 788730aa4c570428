package scanner_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/scanner"
)

// fakeBooks sirve orderbooks predefinidos por token.
type fakeBooks struct {
	books map[string]domain.OrderBook
	fail  map[string]bool
}

func (f *fakeBooks) FetchOrderBook(_ context.Context, tokenID string) (domain.OrderBook, error) {
	if f.fail[tokenID] {
		return domain.OrderBook{}, fmt.Errorf("book unavailable")
	}
	return f.books[tokenID], nil
}

func testConfig() scanner.Config {
	return scanner.Config{
		EntryWindowHrs:   24,
		EntryDeadlineHrs: 1,
		MaxPrice:         0.50,
		MinGap:           0.15,
		MinLiquidity:     30,
		LiquidityLevels:  3,
		StakeTiers: []domain.StakeTier{
			{Min: 0.15, Max: 0.20, StakeUSDC: 10},
			{Min: 0.20, Max: 0.30, StakeUSDC: 20},
			{Min: 0.30, Max: 1.00, StakeUSDC: 30},
		},
	}
}

func makeMatched(odds float64, hrsToStart float64) domain.MatchedGame {
	commence := time.Now().Add(time.Duration(hrsToStart * float64(time.Hour)))
	return domain.MatchedGame{
		Game: domain.Game{
			SportID:      "nba",
			GameID:       "g1",
			CommenceTime: commence,
			HomeTeam:     "Miami Heat",
			AwayTeam:     "Philadelphia 76ers",
			Home:         domain.NewOddsQuote("Miami Heat", odds, nil),
			Away:         domain.NewOddsQuote("Philadelphia 76ers", 3.10, nil),
			MaxOdds:      1.55,
		},
		Market: domain.PredictionMarket{
			ConditionID:   "0xc1",
			Question:      "Heat vs. 76ers",
			GameStartTime: commence,
			Tokens: [2]domain.MarketToken{
				{TokenID: "tok_yes", Outcome: "Heat"},
				{TokenID: "tok_no", Outcome: "76ers"},
			},
			TickSize: 0.01,
		},
	}
}

func bookWithAsk(ask float64, sizes ...float64) domain.OrderBook {
	book := domain.OrderBook{TokenID: "tok_yes"}
	for i, size := range sizes {
		book.Asks = append(book.Asks, domain.BookEntry{
			Price: ask + float64(i)*0.01,
			Size:  size,
		})
	}
	return book
}

func newScanner(books *fakeBooks) *scanner.Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scanner.New(testConfig(), books, logger)
}

func TestScanFindsOpportunity(t *testing.T) {
	books := &fakeBooks{books: map[string]domain.OrderBook{
		"tok_yes": bookWithAsk(0.45, 50, 40, 30),
	}}
	s := newScanner(books)

	// odds 1.40 → prob 0.7143; ask 0.45 → gap 0.2643 → tier $20
	opps, stats := s.Scan(context.Background(), []domain.MatchedGame{makeMatched(1.40, 5)})
	require.Len(t, opps, 1)
	assert.Equal(t, 1, stats.Found)

	opp := opps[0]
	assert.Equal(t, "tok_yes", opp.TokenID)
	assert.InDelta(t, 0.45, opp.BestAsk, 1e-9)
	assert.InDelta(t, 0.7143, opp.ImpliedProb, 1e-9)
	assert.InDelta(t, 0.2643, opp.Gap, 1e-9)
	assert.InDelta(t, 120, opp.LiquidityShares, 1e-9)
	assert.InDelta(t, 20, opp.StakeUSDC, 1e-9)
}

func TestScanGates(t *testing.T) {
	cases := []struct {
		name    string
		matched domain.MatchedGame
		book    domain.OrderBook
		check   func(t *testing.T, stats scanner.ScanStats)
	}{
		{
			name:    "demasiado pronto",
			matched: makeMatched(1.40, 30),
			book:    bookWithAsk(0.45, 100),
			check:   func(t *testing.T, s scanner.ScanStats) { assert.Equal(t, 1, s.TooEarly) },
		},
		{
			name:    "pasado el deadline",
			matched: makeMatched(1.40, 0.5),
			book:    bookWithAsk(0.45, 100),
			check:   func(t *testing.T, s scanner.ScanStats) { assert.Equal(t, 1, s.PastDeadline) },
		},
		{
			name:    "precio demasiado alto",
			matched: makeMatched(1.40, 5),
			book:    bookWithAsk(0.55, 100),
			check:   func(t *testing.T, s scanner.ScanStats) { assert.Equal(t, 1, s.PriceTooHigh) },
		},
		{
			name:    "gap insuficiente",
			matched: makeMatched(1.55, 5), // prob 0.6452, ask 0.497 → gap 0.148
			book:    bookWithAsk(0.497, 100),
			check:   func(t *testing.T, s scanner.ScanStats) { assert.Equal(t, 1, s.GapTooSmall) },
		},
		{
			name:    "libro fino",
			matched: makeMatched(1.40, 5),
			book:    bookWithAsk(0.45, 10, 10),
			check:   func(t *testing.T, s scanner.ScanStats) { assert.Equal(t, 1, s.ThinBook) },
		},
		{
			name:    "sin asks",
			matched: makeMatched(1.40, 5),
			book:    domain.OrderBook{},
			check:   func(t *testing.T, s scanner.ScanStats) { assert.Equal(t, 1, s.NoAsk) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			books := &fakeBooks{books: map[string]domain.OrderBook{"tok_yes": tc.book}}
			opps, stats := newScanner(books).Scan(context.Background(), []domain.MatchedGame{tc.matched})
			assert.Empty(t, opps)
			assert.Equal(t, 0, stats.Found)
			tc.check(t, stats)
		})
	}
}

func TestScanBookErrorSkipsGame(t *testing.T) {
	books := &fakeBooks{
		books: map[string]domain.OrderBook{"tok_yes": bookWithAsk(0.45, 100)},
		fail:  map[string]bool{"tok_yes": true},
	}
	opps, stats := newScanner(books).Scan(context.Background(), []domain.MatchedGame{makeMatched(1.40, 5)})
	assert.Empty(t, opps)
	assert.Equal(t, 1, stats.BookError)
}

func TestScanBuysNoSideWhenFavoriteIsAway(t *testing.T) {
	mg := makeMatched(1.40, 5)
	// favorito visitante: se invierte el lado a comprar
	mg.Game.Home = domain.NewOddsQuote("Miami Heat", 3.10, nil)
	mg.Game.Away = domain.NewOddsQuote("Philadelphia 76ers", 1.40, nil)

	books := &fakeBooks{books: map[string]domain.OrderBook{
		"tok_no": bookWithAsk(0.45, 50, 40, 30),
	}}
	opps, _ := newScanner(books).Scan(context.Background(), []domain.MatchedGame{mg})
	require.Len(t, opps, 1)
	assert.Equal(t, "tok_no", opps[0].TokenID)
	assert.Equal(t, "NO", opps[0].Matched.BuyLabel())
}
