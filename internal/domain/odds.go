package domain

import (
	"fmt"
	"math"
	"time"
)

// OddsQuote es la cuota decimal de un lado de un partido según el bookmaker.
type OddsQuote struct {
	Team        string
	Odds        float64 // cuota decimal (ej: 1.40)
	ImpliedProb float64 // 1/odds, redondeado a 4 decimales
	// HandicapPoint es la línea de hándicap (solo mercados spreads).
	// nil en mercados h2h.
	HandicapPoint *float64
}

// NewOddsQuote construye un quote derivando la probabilidad implícita.
func NewOddsQuote(team string, odds float64, point *float64) OddsQuote {
	return OddsQuote{
		Team:          team,
		Odds:          odds,
		ImpliedProb:   math.Round(1/odds*10000) / 10000,
		HandicapPoint: point,
	}
}

// Game es un partido del feed de cuotas con los dos lados cotizados.
type Game struct {
	SportID      string // clave de la tabla de deportes en config
	GameID       string // id del partido en el feed de cuotas
	CommenceTime time.Time
	HomeTeam     string
	AwayTeam     string
	Home         OddsQuote
	Away         OddsQuote
	// MaxOdds es el techo de cuota del deporte (inyectado desde config).
	MaxOdds float64
}

// Favorite devuelve el lado con cuota <= MaxOdds, o nil si ninguno califica.
// Si ambos califican gana el lado home (un solo favorito por partido).
func (g Game) Favorite() *OddsQuote {
	if g.Home.Odds <= g.MaxOdds {
		return &g.Home
	}
	if g.Away.Odds <= g.MaxOdds {
		return &g.Away
	}
	return nil
}

// FavoriteIsHome devuelve true si el favorito es el equipo local.
func (g Game) FavoriteIsHome() bool {
	return g.Home.Odds <= g.MaxOdds
}

// HoursUntilStart devuelve las horas hasta el comienzo del partido.
// Negativo si el partido ya empezó.
func (g Game) HoursUntilStart() float64 {
	return time.Until(g.CommenceTime).Hours()
}

func (g Game) String() string {
	fav := g.Favorite()
	favStr := "none"
	if fav != nil {
		favStr = fmt.Sprintf("%s (%.2f / %.1f%%)", fav.Team, fav.Odds, fav.ImpliedProb*100)
	}
	return fmt.Sprintf("[%s] %s vs %s | start in %.1fh | favorite: %s",
		g.SportID, g.HomeTeam, g.AwayTeam, g.HoursUntilStart(), favStr)
}

// IsCleanHandicap devuelve true si la línea es un múltiplo no nulo de 0.5.
// Solo esas líneas garantizan un resultado binario estricto:
//
//	permitidas: ±0.5, ±1.0, ±1.5, ±2.0 ...
//	rechazadas: 0.0 (draw no bet), ±0.25, ±0.75 (cuartos, posible push/refund)
func IsCleanHandicap(point float64) bool {
	abs := math.Abs(point)
	if abs == 0 {
		return false
	}
	rem := math.Mod(abs, 0.5)
	return rem < 1e-9 || 0.5-rem < 1e-9
}
