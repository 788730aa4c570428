package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://api.the-odds-api.com/v4"

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del feed de cuotas.
//
// El gobernador de crédito (CreditStore) controla el presupuesto; el rate
// limiter solo evita ráfagas al iterar los deportes en un mismo ciclo.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
}

// NewClient crea un Client. apiKey es obligatoria (viene del entorno).
func NewClient(base, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("oddsapi.NewClient: missing API key")
	}
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    base,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(1, 1),
	}, nil
}

// usage son los contadores de crédito de los headers de respuesta.
type usage struct {
	remaining int
	used      int
}

// get hace un GET con retries y devuelve el body decodificado más los
// contadores de crédito de los headers.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) (usage, error) {
	params.Set("apiKey", c.apiKey)
	fullURL := c.base + path + "?" + params.Encode()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return usage{}, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return usage{}, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return usage{}, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return usage{}, fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return usage{}, fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		u := usage{
			remaining: headerInt(resp.Header, "X-Requests-Remaining"),
			used:      headerInt(resp.Header, "X-Requests-Used"),
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return usage{}, fmt.Errorf("decode response: %w", err)
		}
		return u, nil
	}
	return usage{}, fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// headerInt parsea un header numérico; -1 si falta o no es un entero.
func headerInt(h http.Header, key string) int {
	v := h.Get(key)
	if v == "" {
		return -1
	}
	// la API a veces devuelve decimales ("497.0")
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return -1
}
