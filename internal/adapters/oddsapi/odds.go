package oddsapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/alejandrodnm/polymoly/config"
	"github.com/alejandrodnm/polymoly/internal/domain"
)

// Provider implementa ports.OddsProvider sobre el feed de cuotas,
// con el gobernador de crédito delante de cada llamada.
type Provider struct {
	client     *Client
	credits    *CreditStore
	sports     []config.SportConfig
	bookmakers string
	logger     *slog.Logger
}

func NewProvider(client *Client, credits *CreditStore, sports []config.SportConfig, bookmakers string, logger *slog.Logger) *Provider {
	return &Provider{
		client:     client,
		credits:    credits,
		sports:     sports,
		bookmakers: bookmakers,
		logger:     logger,
	}
}

// apiGame es el partido tal como lo devuelve el feed.
type apiGame struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []apiBookmaker `json:"bookmakers"`
}

type apiBookmaker struct {
	Key     string      `json:"key"`
	Markets []apiMarket `json:"markets"`
}

type apiMarket struct {
	Key      string       `json:"key"`
	Outcomes []apiOutcome `json:"outcomes"`
}

type apiOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point"`
}

// FetchAll trae las cuotas de todos los deportes configurados.
// Cada deporte cuesta exactamente una llamada a la API; si el gobernador
// corta el presupuesto se aborta el ciclo entero.
func (p *Provider) FetchAll(ctx context.Context) ([]domain.Game, []string, error) {
	var games []domain.Game
	var warnings []string
	warned := false

	for _, sport := range p.sports {
		if err := p.credits.Acquire(); err != nil {
			return nil, warnings, err
		}

		sportGames, low, err := p.fetchSport(ctx, sport)
		if err != nil {
			return nil, warnings, fmt.Errorf("fetch %s: %w", sport.ID, err)
		}
		if low && !warned {
			warned = true
			st := p.credits.Snapshot()
			warnings = append(warnings, fmt.Sprintf("créditos bajos: quedan %d llamadas", st.Remaining))
		}
		games = append(games, sportGames...)
	}
	return games, warnings, nil
}

func (p *Provider) fetchSport(ctx context.Context, sport config.SportConfig) ([]domain.Game, bool, error) {
	params := url.Values{}
	params.Set("regions", "eu")
	params.Set("markets", sport.Markets)
	params.Set("oddsFormat", "decimal")
	params.Set("dateFormat", "iso")
	if p.bookmakers != "" {
		params.Set("bookmakers", p.bookmakers)
	}

	var raw []apiGame
	u, err := p.client.get(ctx, "/sports/"+sport.SportKey+"/odds", params, &raw)
	if err != nil {
		return nil, false, err
	}

	low, err := p.credits.Record(u.remaining, u.used)
	if err != nil {
		p.logger.Warn("no se pudo persistir el estado de crédito", "error", err)
	}

	games := make([]domain.Game, 0, len(raw))
	for _, g := range raw {
		game, ok := p.parseGame(sport, g)
		if !ok {
			continue
		}
		if game.Favorite() == nil {
			// sin favorito por debajo del techo de cuota: nada que tradear
			continue
		}
		games = append(games, game)
	}

	p.logger.Debug("cuotas recibidas",
		"sport", sport.ID,
		"games_raw", len(raw),
		"games_kept", len(games),
		"credits_remaining", u.remaining,
	)
	return games, low, nil
}

// parseGame reduce el partido del feed a un domain.Game con ambos lados
// cotizados. Devuelve false si falta el mercado configurado, si faltan
// lados, o si la línea de hándicap no es limpia.
func (p *Provider) parseGame(sport config.SportConfig, g apiGame) (domain.Game, bool) {
	market, ok := firstMarket(g.Bookmakers, sport.Markets)
	if !ok {
		return domain.Game{}, false
	}

	var home, away *apiOutcome
	for i := range market.Outcomes {
		o := &market.Outcomes[i]
		switch o.Name {
		case g.HomeTeam:
			home = o
		case g.AwayTeam:
			away = o
		}
	}
	if home == nil || away == nil {
		return domain.Game{}, false
	}
	if home.Price <= 1 || away.Price <= 1 {
		return domain.Game{}, false
	}

	if sport.Handicap {
		// ambas líneas deben ser múltiplos no nulos de 0.5; la línea 0.0
		// (draw no bet) y los cuartos (±0.25, ±0.75) admiten push y
		// rompen el payoff binario
		if home.Point == nil || away.Point == nil {
			return domain.Game{}, false
		}
		if !domain.IsCleanHandicap(*home.Point) || !domain.IsCleanHandicap(*away.Point) {
			p.logger.Debug("línea de hándicap descartada",
				"game", g.HomeTeam+" vs "+g.AwayTeam,
				"point", *home.Point,
			)
			return domain.Game{}, false
		}
	}

	return domain.Game{
		SportID:      sport.ID,
		GameID:       g.ID,
		CommenceTime: g.CommenceTime,
		HomeTeam:     g.HomeTeam,
		AwayTeam:     g.AwayTeam,
		Home:         domain.NewOddsQuote(home.Name, home.Price, home.Point),
		Away:         domain.NewOddsQuote(away.Name, away.Price, away.Point),
		MaxOdds:      sport.MaxOdds,
	}, true
}

// firstMarket devuelve el primer mercado con la clave pedida entre los
// bookmakers de la respuesta (ya filtrados por la query).
func firstMarket(books []apiBookmaker, key string) (apiMarket, bool) {
	for _, b := range books {
		for _, m := range b.Markets {
			if m.Key == key {
				return m, true
			}
		}
	}
	return apiMarket{}, false
}
