package domain

import "time"

// MarketToken es uno de los dos lados de un mercado binario.
type MarketToken struct {
	TokenID string
	Outcome string // "Yes" | "No" o el nombre del equipo
}

// PredictionMarket es un mercado binario de partido en Polymarket,
// ya filtrado a preguntas puras "TeamA vs. TeamB".
type PredictionMarket struct {
	ConditionID   string
	Question      string // ej: "Heat vs. 76ers"
	EventTitle    string
	GameStartTime time.Time
	Tokens        [2]MarketToken // [0]=YES (equipo local de la pregunta), [1]=NO
	TickSize      float64
	NegRisk       bool
}

// YesToken devuelve el token del primer equipo de la pregunta (lado YES).
func (m PredictionMarket) YesToken() MarketToken { return m.Tokens[0] }

// NoToken devuelve el token del segundo equipo de la pregunta (lado NO).
func (m PredictionMarket) NoToken() MarketToken { return m.Tokens[1] }

// MatchedGame empareja un partido del feed de cuotas con su mercado en
// Polymarket. Invariante del matcher: como máximo un mercado por partido.
type MatchedGame struct {
	Game   Game
	Market PredictionMarket
}

// BuyYes devuelve true si el favorito es el equipo local (lado YES).
func (mg MatchedGame) BuyYes() bool {
	return mg.Game.FavoriteIsHome()
}

// BuyTokenID devuelve el token a comprar según el lado del favorito.
func (mg MatchedGame) BuyTokenID() string {
	if mg.BuyYes() {
		return mg.Market.YesToken().TokenID
	}
	return mg.Market.NoToken().TokenID
}

// BuyLabel devuelve "YES" o "NO" según el lado del favorito.
func (mg MatchedGame) BuyLabel() string {
	if mg.BuyYes() {
		return "YES"
	}
	return "NO"
}
