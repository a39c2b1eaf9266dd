package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"libralend/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ClientConfig configures the HTTP checkout-session client.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Currency string
	Timeout  time.Duration
	// RateLimit is the sustained number of requests per second.
	RateLimit float64
	Burst     int
	// FailureThreshold consecutive failures open the circuit for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Client talks to a hosted-checkout API shaped like Stripe's
// /v1/checkout/sessions resource.
type Client struct {
	baseURL  string
	apiKey   string
	currency string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	log      *slog.Logger
}

var _ Gateway = (*Client)(nil)

func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RateLimit) + 1
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		currency: cfg.Currency,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		tracer:   otel.Tracer("libralend/gateway"),
		log:      log,
	}
	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// An unknown session is the caller's problem, not the gateway's.
		IsSuccessful: func(err error) bool {
			return err == nil || apperr.Is(err, apperr.KindNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

type sessionBody struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Label             string `json:"label"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
	ClientReferenceID string `json:"client_reference_id,omitempty"`
}

type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// CreateSession opens a checkout session for the amount in minor units.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.create_session", trace.WithAttributes(
		attribute.String("payment.reference", req.Reference),
		attribute.String("payment.amount", req.Amount.String()),
	))
	defer span.End()

	body, err := json.Marshal(sessionBody{
		Amount:            req.Amount.Shift(2).Round(0).IntPart(),
		Currency:          c.currency,
		Label:             req.Label,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		ClientReferenceID: req.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &out); err != nil {
		span.SetStatus(codes.Error, "create session failed")
		span.RecordError(err)
		return nil, err
	}
	if out.ID == "" || out.URL == "" {
		return nil, apperr.New(apperr.KindGatewayUnavailable, "payment gateway returned an incomplete session")
	}
	span.SetAttributes(attribute.String("payment.session", out.ID))
	return &Session{Token: out.ID, URL: out.URL}, nil
}

// QueryStatus reports whether the session has been paid.
func (c *Client) QueryStatus(ctx context.Context, token string) (Status, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.query_status", trace.WithAttributes(attribute.String("payment.session", token)))
	defer span.End()

	var out sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(token), nil, &out); err != nil {
		span.RecordError(err)
		return "", err
	}

	status := StatusPending
	switch {
	case out.PaymentStatus == "paid":
		status = StatusPaid
	case out.Status == "expired":
		status = StatusExpired
	}
	span.SetAttributes(attribute.String("payment.status", string(status)))
	return status, nil
}

// do sends one request through the rate limiter and circuit breaker and
// decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway unavailable", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, apperr.New(apperr.KindNotFound, "unknown payment session")
		}
		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})
	if err == nil {
		return nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warn("payment gateway circuit open", "method", method, "path", path)
	}
	return apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway unavailable", err)
}
