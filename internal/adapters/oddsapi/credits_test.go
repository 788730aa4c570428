package oddsapi

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, minReserve, dailyMax, warn int) *CreditStore {
	t.Helper()
	cs, err := NewCreditStore(filepath.Join(t.TempDir(), "credits.json"), minReserve, dailyMax, warn)
	require.NoError(t, err)
	return cs
}

func TestCreditStoreUnknownBalanceIsOptimistic(t *testing.T) {
	cs := newTestStore(t, 100, 50, 150)

	// sin archivo de estado el saldo es desconocido: se permite llamar
	require.NoError(t, cs.Acquire())
	assert.Equal(t, -1, cs.Snapshot().Remaining)
}

func TestCreditStoreReserve(t *testing.T) {
	cs := newTestStore(t, 100, 50, 150)

	_, err := cs.Record(95, 405)
	require.NoError(t, err)

	err = cs.Acquire()
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestCreditStoreWarnThreshold(t *testing.T) {
	cs := newTestStore(t, 100, 50, 150)

	low, err := cs.Record(200, 300)
	require.NoError(t, err)
	assert.False(t, low)

	low, err = cs.Record(149, 351)
	require.NoError(t, err)
	assert.True(t, low)
}

func TestCreditStoreDailyLimit(t *testing.T) {
	cs := newTestStore(t, 10, 3, 50)
	fixed := time.Date(2025, 11, 8, 15, 0, 0, 0, time.UTC)
	cs.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		require.NoError(t, cs.Acquire())
		_, err := cs.Record(400-i, 100+i)
		require.NoError(t, err)
	}

	err := cs.Acquire()
	var dle *DailyLimitError
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, 3, dle.Calls)
	assert.Equal(t, time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC), dle.ResumeAt)
}

func TestCreditStoreDailyRollover(t *testing.T) {
	cs := newTestStore(t, 10, 2, 50)
	fixed := time.Date(2025, 11, 8, 23, 50, 0, 0, time.UTC)
	cs.now = func() time.Time { return fixed }

	for i := 0; i < 2; i++ {
		_, err := cs.Record(400, 100)
		require.NoError(t, err)
	}
	require.Error(t, cs.Acquire())

	// pasada la medianoche UTC el contador diario vuelve a cero
	fixed = fixed.Add(20 * time.Minute)
	require.NoError(t, cs.Acquire())
	assert.Equal(t, 0, cs.Snapshot().DailyCalls)
}

func TestCreditStorePersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credits.json")
	cs, err := NewCreditStore(path, 10, 50, 20)
	require.NoError(t, err)

	_, err = cs.Record(321, 179)
	require.NoError(t, err)

	reloaded, err := NewCreditStore(path, 10, 50, 20)
	require.NoError(t, err)
	st := reloaded.Snapshot()
	assert.Equal(t, 321, st.Remaining)
	assert.Equal(t, 179, st.Used)
	assert.Equal(t, 1, st.DailyCalls)
}
