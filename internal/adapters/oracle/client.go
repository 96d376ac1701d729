package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	pollInterval = 2 * time.Second
	// Las lecturas del oracle son baratas pero no hace falta martillearlo.
	requestsPerSec = 5
)

// Client implementa ports.Oracle contra el servicio HTTP de aleatoriedad.
// El valor de cada petición se publica por rondas; AwaitValue sondea hasta
// que la ronda correspondiente exista. No hay timeout de protocolo: si el
// oracle nunca publica, la espera solo la corta el contexto.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient crea un Client contra el base URL dado.
func NewClient(base string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(requestsPerSec, 2),
	}
}

type requestResponse struct {
	RequestID uint64 `json:"request_id"`
}

type valueResponse struct {
	Round      uint64 `json:"round"`
	Randomness uint64 `json:"randomness"`
}

// RequestValue abre una petición de valor aleatorio.
func (c *Client) RequestValue(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("oracle.RequestValue: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/request", nil)
	if err != nil {
		return 0, fmt.Errorf("oracle.RequestValue: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle.RequestValue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("oracle.RequestValue: status %d: %s", resp.StatusCode, string(msg))
	}

	var out requestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("oracle.RequestValue: decode: %w", err)
	}
	return out.RequestID, nil
}

// AwaitValue sondea la publicación de la semilla para la petición dada.
func (c *Client) AwaitValue(ctx context.Context, requestID uint64) (uint64, error) {
	url := fmt.Sprintf("%s/value/%d", c.base, requestID)

	for {
		seed, ready, err := c.fetchValue(ctx, url)
		if err != nil {
			return 0, fmt.Errorf("oracle.AwaitValue: %w", err)
		}
		if ready {
			return seed, nil
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// fetchValue devuelve (seed, true) si la ronda ya está publicada, o
// (0, false) si todavía no.
func (c *Client) fetchValue(ctx context.Context, url string) (uint64, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, false, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Fallos transitorios de red no rompen la espera.
		return 0, false, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, false, nil
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(resp.Body)
		return 0, false, fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}

	var out valueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, false, fmt.Errorf("decode: %w", err)
	}
	return out.Randomness, true, nil
}
