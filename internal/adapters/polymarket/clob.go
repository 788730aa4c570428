package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// clobBookLevel es un nivel de precio del libro, con precio y tamaño
// como strings decimales.
type clobBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type clobBookResponse struct {
	Market  string          `json:"market"`
	AssetID string          `json:"asset_id"`
	Bids    []clobBookLevel `json:"bids"`
	Asks    []clobBookLevel `json:"asks"`
}

// Books implementa ports.BookProvider sobre el endpoint /book del CLOB.
type Books struct {
	client *Client
}

func NewBooks(client *Client) *Books {
	return &Books{client: client}
}

// FetchOrderBook trae el libro completo de un token. El libro llega sin
// orden garantizado; domain.OrderBook no asume ninguno.
func (b *Books) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	reqURL := b.client.clobBase + "/book?token_id=" + url.QueryEscape(tokenID)

	var resp clobBookResponse
	if err := b.client.get(ctx, b.client.booksLimiter, reqURL, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("fetch book %s: %w", tokenID, err)
	}

	book := domain.OrderBook{
		TokenID: tokenID,
		Bids:    make([]domain.BookEntry, 0, len(resp.Bids)),
		Asks:    make([]domain.BookEntry, 0, len(resp.Asks)),
	}
	for _, lv := range resp.Bids {
		book.Bids = append(book.Bids, domain.BookEntry{Price: domain.ParsePrice(lv.Price), Size: domain.ParsePrice(lv.Size)})
	}
	for _, lv := range resp.Asks {
		book.Asks = append(book.Asks, domain.BookEntry{Price: domain.ParsePrice(lv.Price), Size: domain.ParsePrice(lv.Size)})
	}
	return book, nil
}
