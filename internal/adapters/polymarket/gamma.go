package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

const gammaPageSize = 100

// gammaEvent es un evento de la API Gamma con sus mercados anidados.
type gammaEvent struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket es un mercado Gamma. clobTokenIds y outcomes llegan como
// strings JSON anidados ("[\"123\",\"456\"]"), no como arrays.
type gammaMarket struct {
	ConditionID     string  `json:"conditionId"`
	Question        string  `json:"question"`
	ClobTokenIDs    string  `json:"clobTokenIds"`
	Outcomes        string  `json:"outcomes"`
	GameStartTime   string  `json:"gameStartTime"`
	AcceptingOrders bool    `json:"acceptingOrders"`
	Closed          bool    `json:"closed"`
	NegRisk         bool    `json:"negRisk"`
	MinTickSize     float64 `json:"orderPriceMinTickSize"`
}

// Catalog implementa ports.MarketCatalog sobre la API Gamma.
type Catalog struct {
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

func NewCatalog(client *Client, logger *slog.Logger) *Catalog {
	return &Catalog{client: client, logger: logger, now: time.Now}
}

// FetchSportMarkets devuelve los mercados de partido aún no comenzados
// para el tag dado. Pagina hasta agotar los eventos abiertos.
func (c *Catalog) FetchSportMarkets(ctx context.Context, tagSlug string) ([]domain.PredictionMarket, error) {
	var markets []domain.PredictionMarket

	for offset := 0; ; offset += gammaPageSize {
		params := url.Values{}
		params.Set("tag_slug", tagSlug)
		params.Set("closed", "false")
		params.Set("active", "true")
		params.Set("limit", fmt.Sprint(gammaPageSize))
		params.Set("offset", fmt.Sprint(offset))

		var events []gammaEvent
		reqURL := c.client.gammaBase + "/events?" + params.Encode()
		if err := c.client.get(ctx, c.client.gammaLimiter, reqURL, &events); err != nil {
			return nil, fmt.Errorf("gamma events (%s, offset %d): %w", tagSlug, offset, err)
		}
		if len(events) == 0 {
			break
		}

		for _, ev := range events {
			for _, m := range ev.Markets {
				pm, ok := c.toDomain(ev, m)
				if !ok {
					continue
				}
				markets = append(markets, pm)
			}
		}

		if len(events) < gammaPageSize {
			break
		}
	}

	c.logger.Debug("mercados de partido", "tag", tagSlug, "count", len(markets))
	return markets, nil
}

// toDomain filtra y convierte un mercado Gamma. Solo pasan las preguntas
// puras de ganador ("Heat vs. 76ers") que aceptan órdenes y cuyo partido
// no ha comenzado.
func (c *Catalog) toDomain(ev gammaEvent, m gammaMarket) (domain.PredictionMarket, bool) {
	if m.Closed || !m.AcceptingOrders {
		return domain.PredictionMarket{}, false
	}
	if !isMatchupQuestion(m.Question) {
		return domain.PredictionMarket{}, false
	}

	start, err := parseGammaTime(m.GameStartTime)
	if err != nil || !start.After(c.now()) {
		return domain.PredictionMarket{}, false
	}

	tokenIDs, err := decodeStringArray(m.ClobTokenIDs)
	if err != nil || len(tokenIDs) != 2 {
		return domain.PredictionMarket{}, false
	}
	outcomes, err := decodeStringArray(m.Outcomes)
	if err != nil || len(outcomes) != 2 {
		return domain.PredictionMarket{}, false
	}

	tick := m.MinTickSize
	if tick == 0 {
		tick = 0.01
	}

	return domain.PredictionMarket{
		ConditionID:   m.ConditionID,
		Question:      m.Question,
		EventTitle:    ev.Title,
		GameStartTime: start,
		Tokens: [2]domain.MarketToken{
			{TokenID: tokenIDs[0], Outcome: outcomes[0]},
			{TokenID: tokenIDs[1], Outcome: outcomes[1]},
		},
		TickSize: tick,
		NegRisk:  m.NegRisk,
	}, true
}

// isMatchupQuestion acepta solo preguntas de ganador puro "A vs. B".
// Descarta props, totales, hándicaps y cualquier formato con prefijo
// ("NBA: ...", "Will X win ...").
func isMatchupQuestion(q string) bool {
	lower := strings.ToLower(q)
	if !strings.Contains(lower, " vs") {
		return false
	}
	if strings.Contains(lower, ":") {
		return false
	}
	for _, banned := range []string{"will ", "o/u", "spread", "over", "under", "total", "points"} {
		if strings.Contains(lower, banned) {
			return false
		}
	}
	return true
}

// decodeStringArray parsea un array JSON embebido como string.
func decodeStringArray(s string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// parseGammaTime tolera los dos formatos de fecha que devuelve Gamma.
func parseGammaTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty gameStartTime")
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05Z07",
		"2006-01-02 15:04:05Z0700",
		"2006-01-02T15:04:05.999Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable gameStartTime %q", s)
}
