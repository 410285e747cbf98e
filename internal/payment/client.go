// Package payment holds the thin HTTP client for the hosted-checkout
// gateway and the webhook event parsing for payment confirmations. The
// gateway protocol itself is an external collaborator; only the checkout
// creation call and the paid event are modelled here.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config holds gateway connection settings.
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// CheckoutRequest describes the hosted checkout session to create.
type CheckoutRequest struct {
	Amount      float64
	Description string
	BuyerEmail  string
	BuyerName   string
	// Metadata rides to the gateway and comes back on the webhook;
	// serial_no is the correlation key.
	Metadata map[string]string
}

// Client creates hosted checkout sessions against the gateway API.
type Client interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
}

type httpClient struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// NewClient creates a gateway client authenticated with the secret key.
func NewClient(cfg Config, logger zerolog.Logger) Client {
	return &httpClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With().Str("component", "payment-client").Logger(),
	}
}

// CreateCheckout asks the gateway for a hosted checkout URL. Amounts are
// sent in centavos as the gateway requires.
func (c *httpClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"line_items": []map[string]any{
					{
						"name":     req.Description,
						"amount":   int64(math.Round(req.Amount * 100)),
						"currency": "PHP",
						"quantity": 1,
					},
				},
				"payment_method_types": []string{"gcash", "card"},
				"success_url":          c.cfg.SuccessURL,
				"cancel_url":           c.cfg.CancelURL,
				"billing": map[string]any{
					"name":  req.BuyerName,
					"email": req.BuyerEmail,
				},
				"metadata": req.Metadata,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode checkout payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/checkout_sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.cfg.SecretKey+":")))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("checkout session request failed")
		return "", fmt.Errorf("checkout session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Msg("checkout session rejected by gateway")
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Attributes struct {
				CheckoutURL string `json:"checkout_url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}

	if parsed.Data.Attributes.CheckoutURL == "" {
		return "", fmt.Errorf("gateway response carried no checkout URL")
	}

	c.logger.Info().
		Str("buyer_email", req.BuyerEmail).
		Msg("checkout session created")

	return parsed.Data.Attributes.CheckoutURL, nil
}
