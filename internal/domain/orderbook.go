package domain

import (
	"sort"
	"strconv"
)

// OrderBook representa el libro de órdenes de un token.
//
// No asumimos ningún orden en Bids/Asks: la API los devuelve a veces
// ascendentes y a veces descendentes según el endpoint. Todos los métodos
// buscan el mejor nivel explícitamente.
type OrderBook struct {
	TokenID string
	Bids    []BookEntry
	Asks    []BookEntry
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mayor precio de compra. 0 si no hay bids.
func (ob OrderBook) BestBid() float64 {
	best := 0.0
	for _, b := range ob.Bids {
		if b.Price > best {
			best = b.Price
		}
	}
	return best
}

// BestAsk devuelve el menor precio de venta. 0 si no hay asks.
func (ob OrderBook) BestAsk() float64 {
	best := 0.0
	for _, a := range ob.Asks {
		if best == 0 || a.Price < best {
			best = a.Price
		}
	}
	return best
}

// AskLiquidity suma el size de los n niveles de ask más cercanos al best ask.
// Sumar varios niveles evita que una sola orden fina decida el stake.
func (ob OrderBook) AskLiquidity(n int) float64 {
	if len(ob.Asks) == 0 || n <= 0 {
		return 0
	}
	asks := make([]BookEntry, len(ob.Asks))
	copy(asks, ob.Asks)
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	if n > len(asks) {
		n = len(asks)
	}
	var total float64
	for _, a := range asks[:n] {
		total += a.Size
	}
	return total
}

// ParsePrice convierte un string de precio a float64.
// Usado en el mapping de la API.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
