package matcher_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/matcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeGame(home, away string, commence time.Time) domain.Game {
	return domain.Game{
		SportID:      "nba",
		GameID:       "g-" + home,
		CommenceTime: commence,
		HomeTeam:     home,
		AwayTeam:     away,
		Home:         domain.NewOddsQuote(home, 1.40, nil),
		Away:         domain.NewOddsQuote(away, 3.10, nil),
		MaxOdds:      1.55,
	}
}

func makeMarket(question string, start time.Time) domain.PredictionMarket {
	return domain.PredictionMarket{
		ConditionID:   "0x" + question,
		Question:      question,
		GameStartTime: start,
		Tokens: [2]domain.MarketToken{
			{TokenID: "yes-" + question},
			{TokenID: "no-" + question},
		},
		TickSize: 0.01,
	}
}

func TestSplitTeams(t *testing.T) {
	home, away, ok := matcher.SplitTeams("Heat vs. 76ers")
	require.True(t, ok)
	assert.Equal(t, "Heat", home)
	assert.Equal(t, "76ers", away)

	home, away, ok = matcher.SplitTeams("Heat VS 76ers")
	require.True(t, ok)
	assert.Equal(t, "Heat", home)
	assert.Equal(t, "76ers", away)

	_, _, ok = matcher.SplitTeams("Will the Heat win?")
	assert.False(t, ok)
}

func TestLoadTeamMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"_comment": "Odds API full name -> Polymarket short name",
		"Miami Heat": "Heat",
		"Philadelphia 76ers": "76ers"
	}`), 0o644))

	mapping, err := matcher.LoadTeamMapping(path, testLogger())
	require.NoError(t, err)
	assert.Len(t, mapping, 2)
	assert.Equal(t, "Heat", matcher.Normalize("Miami Heat", mapping))
	// sin entrada se devuelve el nombre original
	assert.Equal(t, "Boston Celtics", matcher.Normalize("Boston Celtics", mapping))
}

func TestLoadTeamMappingMissingFile(t *testing.T) {
	mapping, err := matcher.LoadTeamMapping(filepath.Join(t.TempDir(), "nope.json"), testLogger())
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestMatchByNameAndTime(t *testing.T) {
	commence := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)
	mapping := map[string]string{
		"Miami Heat":         "Heat",
		"Philadelphia 76ers": "76ers",
	}
	m := matcher.New(mapping, 3*time.Hour, testLogger())

	games := []domain.Game{makeGame("Miami Heat", "Philadelphia 76ers", commence)}
	markets := []domain.PredictionMarket{
		makeMarket("Heat vs. 76ers", commence.Add(30*time.Minute)),
		makeMarket("Celtics vs. Knicks", commence),
	}

	matched := m.Match(games, markets)
	require.Len(t, matched, 1)
	assert.Equal(t, "Heat vs. 76ers", matched[0].Market.Question)
	assert.True(t, matched[0].BuyYes())
	assert.Equal(t, "yes-Heat vs. 76ers", matched[0].BuyTokenID())
}

func TestMatchRejectsOutsideTolerance(t *testing.T) {
	commence := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)
	m := matcher.New(nil, 3*time.Hour, testLogger())

	games := []domain.Game{makeGame("Heat", "76ers", commence)}
	markets := []domain.PredictionMarket{
		// mismo matchup pero 4h más tarde: otro partido
		makeMarket("Heat vs. 76ers", commence.Add(4*time.Hour)),
	}

	assert.Empty(t, m.Match(games, markets))
}

func TestMatchAmbiguityIsSkipped(t *testing.T) {
	commence := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)
	m := matcher.New(nil, 3*time.Hour, testLogger())

	games := []domain.Game{makeGame("Heat", "76ers", commence)}
	markets := []domain.PredictionMarket{
		makeMarket("Heat vs. 76ers", commence),
		makeMarket("Heat vs. 76ers", commence.Add(time.Hour)),
	}

	// dos candidatos dentro de tolerancia: mejor no apostar que apostar
	// al mercado equivocado
	assert.Empty(t, m.Match(games, markets))
}

func TestMatchNoMarket(t *testing.T) {
	commence := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)
	m := matcher.New(nil, 3*time.Hour, testLogger())

	games := []domain.Game{makeGame("Heat", "76ers", commence)}
	assert.Empty(t, m.Match(games, nil))
}
