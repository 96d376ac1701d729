package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

const (
	// El servicio de tokens admite ráfagas cortas; limitamos por debajo.
	transfersPerSec = 20

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client implementa ports.TokenLedger contra el servicio HTTP de tokens
// fungibles, con rate limiting y retries.
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
		limiter: rate.NewLimiter(transfersPerSec, 5),
	}
}

type transferRequest struct {
	// Ref hace la transferencia idempotente: los retries tras un timeout
	// no pueden duplicar el movimiento.
	Ref    string         `json:"ref"`
	From   domain.Address `json:"from"`
	To     domain.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

type transferResponse struct {
	Ok     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Transfer mueve amount de from a to. Un rechazo del servicio o una
// respuesta indescifrable es un error; el caller decide qué hacer con él.
func (c *Client) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	req := transferRequest{
		Ref:    uuid.New().String(),
		From:   from,
		To:     to,
		Amount: amount,
	}

	var resp transferResponse
	if err := c.post(ctx, c.base+"/transfer", req, &resp); err != nil {
		return fmt.Errorf("token.Transfer: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("token.Transfer: rejected: %s", resp.Reason)
	}
	return nil
}

// post hace un POST JSON con rate limiting y retries con backoff.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("token service retry", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(msg))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
