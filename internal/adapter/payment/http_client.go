package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rl1809/storefront/internal/port"
)

var ErrNoRedirectURL = errors.New("payment gateway returned no redirect url")

type Config struct {
	BaseURL   string
	APIKey    string
	ReturnURL string
	CancelURL string
	Timeout   time.Duration
}

// HTTPClient creates payment links on the gateway. Calls are never retried;
// repeated failures open the breaker and fail fast.
type HTTPClient struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "payment-gateway",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

type linkRequest struct {
	port.PaymentLinkRequest
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type linkResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

func (c *HTTPClient) CreatePaymentLink(ctx context.Context, req port.PaymentLinkRequest) (string, error) {
	return c.breaker.Execute(func() (string, error) {
		return c.createLink(ctx, req)
	})
}

func (c *HTTPClient) createLink(ctx context.Context, req port.PaymentLinkRequest) (string, error) {
	body, err := json.Marshal(linkRequest{
		PaymentLinkRequest: req,
		ReturnURL:          withReference(c.cfg.ReturnURL, req.Reference),
		CancelURL:          withReference(c.cfg.CancelURL, req.Reference),
	})
	if err != nil {
		return "", fmt.Errorf("marshal payment link request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/payment-links", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build payment link request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey(req))
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read payment gateway response: %w", err)
	}

	var out linkResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("unmarshal payment gateway response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, msg)
	}
	if out.URL == "" {
		return "", ErrNoRedirectURL
	}
	return out.URL, nil
}

// idempotencyKey is scoped to one submit attempt so a manual retry is not
// answered with the gateway's cached failure.
func idempotencyKey(req port.PaymentLinkRequest) string {
	return fmt.Sprintf("%s-%d", req.Reference, max(req.Attempt, 1))
}

func withReference(base, reference string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "reference=" + url.QueryEscape(reference)
}
