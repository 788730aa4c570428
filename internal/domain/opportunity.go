package domain

import (
	"fmt"
	"time"
)

// ArbitrageOpportunity es una divergencia de precio que pasó los cuatro
// gates del scanner. Inmutable: el executor la consume exactamente una vez.
type ArbitrageOpportunity struct {
	Matched         MatchedGame
	TokenID         string  // token a comprar
	BestAsk         float64 // precio observado (worst-price para la orden)
	ImpliedProb     float64 // probabilidad implícita del favorito
	Gap             float64 // ImpliedProb - BestAsk
	LiquidityShares float64 // shares disponibles cerca del best ask
	StakeUSDC       float64 // stake según la tabla de tiers
	DetectedAt      time.Time
}

// GameID devuelve el id del partido en el feed de cuotas.
func (o ArbitrageOpportunity) GameID() string { return o.Matched.Game.GameID }

// EventTitle devuelve la pregunta del mercado de Polymarket.
func (o ArbitrageOpportunity) EventTitle() string { return o.Matched.Market.Question }

// FavoriteTeam devuelve el nombre del favorito.
func (o ArbitrageOpportunity) FavoriteTeam() string {
	if fav := o.Matched.Game.Favorite(); fav != nil {
		return fav.Team
	}
	return ""
}

func (o ArbitrageOpportunity) String() string {
	return fmt.Sprintf("%s | fav %s %.1f%% vs ask %.2f | gap %.2f | liq %.0f | $%.0f %s",
		o.EventTitle(), o.FavoriteTeam(), o.ImpliedProb*100, o.BestAsk,
		o.Gap, o.LiquidityShares, o.StakeUSDC, o.Matched.BuyLabel())
}

// StakeTier asigna un stake fijo a un rango de gap [Min, Max).
// El último tier es abierto por arriba: su stake aplica a todo gap >= Min.
type StakeTier struct {
	Min       float64
	Max       float64
	StakeUSDC float64
}

// StakeForGap busca el stake en la tabla ordenada de tiers.
// Devuelve 0 si el gap queda por debajo del primer tier.
func StakeForGap(tiers []StakeTier, gap float64) float64 {
	for i, t := range tiers {
		if i == len(tiers)-1 {
			if gap >= t.Min {
				return t.StakeUSDC
			}
			return 0
		}
		if gap >= t.Min && gap < t.Max {
			return t.StakeUSDC
		}
	}
	return 0
}

// ValidateTiers verifica que la tabla sea contigua y estrictamente creciente
// tanto en rangos de gap como en stakes.
func ValidateTiers(tiers []StakeTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("stake tiers: empty table")
	}
	for i, t := range tiers {
		if t.Min < 0 || t.StakeUSDC <= 0 {
			return fmt.Errorf("stake tiers: tier %d invalid (min=%.2f stake=%.2f)", i, t.Min, t.StakeUSDC)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.Min != prev.Max {
			return fmt.Errorf("stake tiers: gap between tier %d and %d (%.2f != %.2f)", i-1, i, prev.Max, t.Min)
		}
		if t.StakeUSDC <= prev.StakeUSDC {
			return fmt.Errorf("stake tiers: stakes must increase (tier %d: %.2f <= %.2f)", i, t.StakeUSDC, prev.StakeUSDC)
		}
	}
	for i, t := range tiers[:len(tiers)-1] {
		if t.Max <= t.Min {
			return fmt.Errorf("stake tiers: tier %d range inverted", i)
		}
	}
	return nil
}
