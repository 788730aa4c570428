package polymarket_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polymoly/internal/adapters/polymarket"
)

func TestFetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "tok1", r.URL.Query().Get("token_id"))
		// asks en orden descendente a propósito: el libro no garantiza orden
		fmt.Fprint(w, `{
		  "market": "0xcond1",
		  "asset_id": "tok1",
		  "bids": [
		    {"price": "0.40", "size": "100"},
		    {"price": "0.43", "size": "50"}
		  ],
		  "asks": [
		    {"price": "0.60", "size": "200"},
		    {"price": "0.45", "size": "80"},
		    {"price": "0.46", "size": "40"}
		  ]
		}`)
	}))
	defer srv.Close()

	books := polymarket.NewBooks(polymarket.NewClient(srv.URL, ""))
	book, err := books.FetchOrderBook(t.Context(), "tok1")
	require.NoError(t, err)

	assert.Equal(t, "tok1", book.TokenID)
	assert.InDelta(t, 0.45, book.BestAsk(), 1e-9)
	assert.InDelta(t, 0.43, book.BestBid(), 1e-9)
	assert.InDelta(t, 320, book.AskLiquidity(3), 1e-9)
}

func TestFetchOrderBookEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"market": "0xcond1", "asset_id": "tok1", "bids": [], "asks": []}`)
	}))
	defer srv.Close()

	books := polymarket.NewBooks(polymarket.NewClient(srv.URL, ""))
	book, err := books.FetchOrderBook(t.Context(), "tok1")
	require.NoError(t, err)
	assert.Zero(t, book.BestAsk())
	assert.Zero(t, book.BestBid())
}
