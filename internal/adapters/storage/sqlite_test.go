package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymoly/internal/adapters/storage"
	"github.com/alejandrodnm/polymoly/internal/domain"
)

func makeBet(tokenID string) domain.Bet {
	return domain.Bet{
		LocalID:      uuid.NewString(),
		SportID:      "nba",
		GameID:       "game-" + tokenID,
		EventTitle:   "Heat vs. 76ers",
		TokenID:      tokenID,
		BuyLabel:     "YES",
		FavoriteTeam: "Heat",
		Odds:         1.40,
		ImpliedProb:  0.7143,
		EntryPrice:   0.45,
		Gap:          0.2643,
		StakeUSDC:    20,
		OrderID:      "ord-" + tokenID,
		CommenceTime: time.Now().Add(5 * time.Hour).UTC().Truncate(time.Second),
		PlacedAt:     time.Now().UTC().Truncate(time.Second),
		Outcome:      domain.OutcomePending,
	}
}

func newLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteLedger_InsertAndPendingRoundtrip(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	bet := makeBet("tok1")
	id, err := db.InsertBet(ctx, bet)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	pending, err := db.PendingBets(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got := pending[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, bet.LocalID, got.LocalID)
	assert.Equal(t, "nba", got.SportID)
	assert.Equal(t, "tok1", got.TokenID)
	assert.Equal(t, "YES", got.BuyLabel)
	assert.InDelta(t, 0.45, got.EntryPrice, 1e-9)
	assert.InDelta(t, 20, got.StakeUSDC, 1e-9)
	assert.Equal(t, domain.OutcomePending, got.Outcome)
	assert.Nil(t, got.PnLUSDC)
	assert.Nil(t, got.SettledAt)
	assert.Equal(t, bet.CommenceTime, got.CommenceTime)
}

func TestSQLiteLedger_SettleIsIdempotent(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	id, err := db.InsertBet(ctx, makeBet("tok1"))
	require.NoError(t, err)

	settled, err := db.SettleBet(ctx, id, domain.OutcomeWin, 24.44)
	require.NoError(t, err)
	assert.True(t, settled)

	// la segunda liquidación no toca ninguna fila
	settled, err = db.SettleBet(ctx, id, domain.OutcomeLoss, -20)
	require.NoError(t, err)
	assert.False(t, settled)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 0, stats.Losses)
	assert.InDelta(t, 24.44, stats.TotalPnL, 0.01)
}

func TestSQLiteLedger_SettleUnknownBet(t *testing.T) {
	db := newLedger(t)

	settled, err := db.SettleBet(context.Background(), 999, domain.OutcomeWin, 10)
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestSQLiteLedger_ActiveTokenIDs(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	id1, err := db.InsertBet(ctx, makeBet("tok1"))
	require.NoError(t, err)
	_, err = db.InsertBet(ctx, makeBet("tok2"))
	require.NoError(t, err)

	active, err := db.ActiveTokenIDs(ctx)
	require.NoError(t, err)
	assert.True(t, active["tok1"])
	assert.True(t, active["tok2"])

	// al liquidar, el token deja de contar como posición abierta
	_, err = db.SettleBet(ctx, id1, domain.OutcomeWin, 10)
	require.NoError(t, err)

	active, err = db.ActiveTokenIDs(ctx)
	require.NoError(t, err)
	assert.False(t, active["tok1"])
	assert.True(t, active["tok2"])
}

// settleAll liquida ids en orden con los outcomes dados.
func settleAll(t *testing.T, db *storage.SQLiteLedger, ids []int64, outcomes []domain.BetOutcome) {
	t.Helper()
	ctx := context.Background()
	for i, id := range ids {
		pnl := 10.0
		if outcomes[i] == domain.OutcomeLoss {
			pnl = -20.0
		}
		_, err := db.SettleBet(ctx, id, outcomes[i], pnl)
		require.NoError(t, err)
	}
}

func TestSQLiteLedger_ConsecutiveLosses(t *testing.T) {
	cases := []struct {
		name     string
		outcomes []domain.BetOutcome
		want     int
	}{
		{"sin liquidaciones", nil, 0},
		{"racha de tres", []domain.BetOutcome{domain.OutcomeWin, domain.OutcomeLoss, domain.OutcomeLoss, domain.OutcomeLoss}, 3},
		{"victoria intermedia corta la racha", []domain.BetOutcome{domain.OutcomeLoss, domain.OutcomeLoss, domain.OutcomeWin, domain.OutcomeLoss}, 1},
		{"última es victoria", []domain.BetOutcome{domain.OutcomeLoss, domain.OutcomeLoss, domain.OutcomeWin}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newLedger(t)
			ctx := context.Background()

			ids := make([]int64, len(tc.outcomes))
			for i := range tc.outcomes {
				id, err := db.InsertBet(ctx, makeBet(uuid.NewString()))
				require.NoError(t, err)
				ids[i] = id
			}
			settleAll(t, db, ids, tc.outcomes)

			got, err := db.ConsecutiveLosses(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSQLiteLedger_ConsecutiveLossesLongStreak(t *testing.T) {
	// Rachas por encima de 10 también cuentan completas: el umbral del
	// breaker es configurable y no puede toparse en la consulta.
	db := newLedger(t)
	ctx := context.Background()

	const streak = 12
	outcomes := make([]domain.BetOutcome, streak)
	ids := make([]int64, streak)
	for i := range outcomes {
		outcomes[i] = domain.OutcomeLoss
		id, err := db.InsertBet(ctx, makeBet(uuid.NewString()))
		require.NoError(t, err)
		ids[i] = id
	}
	settleAll(t, db, ids, outcomes)

	got, err := db.ConsecutiveLosses(ctx)
	require.NoError(t, err)
	assert.Equal(t, streak, got)
}

func TestSQLiteLedger_StatsEmpty(t *testing.T) {
	db := newLedger(t)

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerStats{}, stats)
}

func TestSQLiteLedger_StopFlag(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	stopped, _, err := db.StopFlag(ctx)
	require.NoError(t, err)
	assert.False(t, stopped)

	require.NoError(t, db.SetStopFlag(ctx, "3 derrotas consecutivas"))

	stopped, reason, err := db.StopFlag(ctx)
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, "3 derrotas consecutivas", reason)
}

func TestSQLiteLedger_AllBetsPendingFirst(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	settledID, err := db.InsertBet(ctx, makeBet("tok-settled"))
	require.NoError(t, err)
	_, err = db.InsertBet(ctx, makeBet("tok-open"))
	require.NoError(t, err)

	ok, err := db.SettleBet(ctx, settledID, domain.OutcomeWin, 24.44)
	require.NoError(t, err)
	require.True(t, ok)

	bets, err := db.AllBets(ctx)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, "tok-open", bets[0].TokenID)
	assert.Equal(t, domain.OutcomePending, bets[0].Outcome)
	assert.Equal(t, "tok-settled", bets[1].TokenID)
	assert.Equal(t, domain.OutcomeWin, bets[1].Outcome)
}
