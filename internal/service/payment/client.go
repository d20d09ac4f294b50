package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultGatewayTimeout = 10 * time.Second

type GatewayConfig struct {
	BaseURL   string
	SecretKey string
	Currency  string
	Timeout   time.Duration
}

// GatewayClient creates payment intents with the gateway. The user id
// rides along in metadata so the succeeded-webhook can find its way
// back to the right balance.
type GatewayClient struct {
	cfg    GatewayConfig
	client *http.Client
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultGatewayTimeout
	}

	return &GatewayClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// CreatePaymentIntent registers an intended top-up of amount (major
// currency units) and returns the client secret the UI needs to
// complete the payment.
func (c *GatewayClient) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	// The gateway speaks form-encoded requests with integer minor units
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount.Mul(decimal.NewFromInt(100)).IntPart(), 10))
	form.Set("currency", c.cfg.Currency)
	form.Set("metadata[user_id]", userID.String())
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	var intent struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return "", fmt.Errorf("failed to decode intent: %w", err)
	}

	return intent.ClientSecret, nil
}
