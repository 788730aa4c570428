package polymarket_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymoly/internal/adapters/polymarket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gammaEventsBody(start time.Time) string {
	ts := start.UTC().Format(time.RFC3339)
	return fmt.Sprintf(`[
	  {
	    "id": "ev1",
	    "title": "Heat vs. 76ers",
	    "markets": [
	      {
	        "conditionId": "0xcond1",
	        "question": "Heat vs. 76ers",
	        "clobTokenIds": "[\"tok_yes\",\"tok_no\"]",
	        "outcomes": "[\"Heat\",\"76ers\"]",
	        "gameStartTime": %[1]q,
	        "acceptingOrders": true,
	        "negRisk": false,
	        "orderPriceMinTickSize": 0.01
	      },
	      {
	        "conditionId": "0xcond2",
	        "question": "Heat vs. 76ers: Total Points O/U 215.5",
	        "clobTokenIds": "[\"t1\",\"t2\"]",
	        "outcomes": "[\"Over\",\"Under\"]",
	        "gameStartTime": %[1]q,
	        "acceptingOrders": true
	      },
	      {
	        "conditionId": "0xcond3",
	        "question": "Will the Heat win the NBA Finals?",
	        "clobTokenIds": "[\"t3\",\"t4\"]",
	        "outcomes": "[\"Yes\",\"No\"]",
	        "gameStartTime": %[1]q,
	        "acceptingOrders": true
	      },
	      {
	        "conditionId": "0xcond4",
	        "question": "Celtics vs. Knicks",
	        "clobTokenIds": "[\"t5\",\"t6\"]",
	        "outcomes": "[\"Celtics\",\"Knicks\"]",
	        "gameStartTime": %[1]q,
	        "acceptingOrders": false
	      },
	      {
	        "conditionId": "0xcond5",
	        "question": "Bulls vs. Pistons",
	        "clobTokenIds": "[\"t7\",\"t8\"]",
	        "outcomes": "[\"Bulls\",\"Pistons\"]",
	        "gameStartTime": "2020-01-01T00:00:00Z",
	        "acceptingOrders": true
	      }
	    ]
	  }
	]`, ts)
}

func TestFetchSportMarketsFiltersMatchups(t *testing.T) {
	start := time.Now().Add(8 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "nba", r.URL.Query().Get("tag_slug"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		fmt.Fprint(w, gammaEventsBody(start))
	}))
	defer srv.Close()

	catalog := polymarket.NewCatalog(polymarket.NewClient("", srv.URL), testLogger())
	markets, err := catalog.FetchSportMarkets(t.Context(), "nba")
	require.NoError(t, err)

	// solo sobrevive la pregunta pura de ganador con partido futuro
	// que acepta órdenes
	require.Len(t, markets, 1)
	m := markets[0]
	assert.Equal(t, "0xcond1", m.ConditionID)
	assert.Equal(t, "Heat vs. 76ers", m.Question)
	assert.Equal(t, "tok_yes", m.YesToken().TokenID)
	assert.Equal(t, "Heat", m.YesToken().Outcome)
	assert.Equal(t, "tok_no", m.NoToken().TokenID)
	assert.Equal(t, 0.01, m.TickSize)
	assert.False(t, m.NegRisk)
	assert.WithinDuration(t, start, m.GameStartTime, time.Second)
}

func TestFetchSportMarketsEmptyTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	catalog := polymarket.NewCatalog(polymarket.NewClient("", srv.URL), testLogger())
	markets, err := catalog.FetchSportMarkets(t.Context(), "nhl")
	require.NoError(t, err)
	assert.Empty(t, markets)
}

func TestFetchSportMarketsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	catalog := polymarket.NewCatalog(polymarket.NewClient("", srv.URL), testLogger())
	_, err := catalog.FetchSportMarkets(t.Context(), "nba")
	assert.Error(t, err)
}
