// Package matcher empareja partidos del feed de cuotas con sus mercados
// binarios en Polymarket.
//
// Formato de los mercados de partido:
//
//	"Heat vs. 76ers" → YES = Heat (equipo local), NO = 76ers (visitante)
//
// Lógica:
//  1. team_mapping.json normaliza nombres completos a la forma corta del
//     mercado (ej: "Miami Heat" → "Heat")
//  2. matching por nombre (ambos equipos presentes en la pregunta) y por
//     hora de comienzo (±tolerancia)
//  3. ambigüedad = skip: con cero o más de un candidato no se apuesta
package matcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// LoadTeamMapping carga el JSON nombre completo → forma corta.
// Las claves con prefijo "_" son comentarios y se ignoran. Un archivo
// ausente no es un error: se devuelve un mapping vacío.
func LoadTeamMapping(path string, logger *slog.Logger) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn("team mapping no encontrado, normalización desactivada", "path", path)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("matcher.LoadTeamMapping: read %q: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("matcher.LoadTeamMapping: parse %q: %w", path, err)
	}

	mapping := make(map[string]string, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		mapping[k] = v
	}
	return mapping, nil
}

// Normalize traduce un nombre completo del feed de cuotas a la forma corta
// del mercado. Sin entrada en el mapping devuelve el original.
func Normalize(fullName string, mapping map[string]string) string {
	if short, ok := mapping[fullName]; ok {
		return short
	}
	return fullName
}

// Matcher empareja partidos con mercados.
type Matcher struct {
	mapping   map[string]string
	tolerance time.Duration
	logger    *slog.Logger
}

func New(mapping map[string]string, tolerance time.Duration, logger *slog.Logger) *Matcher {
	return &Matcher{mapping: mapping, tolerance: tolerance, logger: logger}
}

// Match devuelve los emparejamientos inequívocos. Un partido sin mercado,
// o con más de un candidato, se descarta: una apuesta sobre el mercado
// equivocado es peor que ninguna apuesta.
func (m *Matcher) Match(games []domain.Game, markets []domain.PredictionMarket) []domain.MatchedGame {
	var out []domain.MatchedGame

	for _, game := range games {
		homeShort := Normalize(game.HomeTeam, m.mapping)
		awayShort := Normalize(game.AwayTeam, m.mapping)

		market, ok := m.findMarket(markets, homeShort, awayShort, game.CommenceTime)
		if !ok {
			m.logger.Debug("sin mercado para el partido",
				"game", game.HomeTeam+" vs "+game.AwayTeam,
				"home_short", homeShort, "away_short", awayShort,
			)
			continue
		}

		out = append(out, domain.MatchedGame{Game: game, Market: market})
		m.logger.Info("partido emparejado",
			"game", game.HomeTeam+" vs "+game.AwayTeam,
			"market", market.Question,
			"favorite", game.Favorite().Team,
		)
	}

	m.logger.Info("matching completado", "games", len(games), "matched", len(out))
	return out
}

// findMarket busca el único mercado que coincide en equipos y horario.
func (m *Matcher) findMarket(markets []domain.PredictionMarket, homeShort, awayShort string, commence time.Time) (domain.PredictionMarket, bool) {
	homeL := strings.ToLower(homeShort)
	awayL := strings.ToLower(awayShort)

	var hits []domain.PredictionMarket
	for _, mk := range markets {
		qHome, qAway, ok := SplitTeams(mk.Question)
		if !ok {
			continue
		}
		marketText := strings.ToLower(qHome + " " + qAway)
		if !strings.Contains(marketText, homeL) || !strings.Contains(marketText, awayL) {
			continue
		}

		diff := mk.GameStartTime.Sub(commence)
		if diff < 0 {
			diff = -diff
		}
		if diff > m.tolerance {
			continue
		}
		hits = append(hits, mk)
	}

	switch len(hits) {
	case 1:
		return hits[0], true
	case 0:
		return domain.PredictionMarket{}, false
	default:
		m.logger.Warn("matching ambiguo, se descarta el partido",
			"candidates", len(hits), "home", homeShort, "away", awayShort)
		return domain.PredictionMarket{}, false
	}
}

var vsRe = regexp.MustCompile(`(?i)\s+vs\.?\s+`)

// SplitTeams separa "Heat vs. 76ers" en ("Heat", "76ers").
func SplitTeams(question string) (home, away string, ok bool) {
	parts := vsRe.Split(question, -1)
	if len(parts) != 2 {
		return "", "", false
	}
	home = strings.TrimSpace(parts[0])
	away = strings.TrimSpace(parts[1])
	return home, away, home != "" && away != ""
}
