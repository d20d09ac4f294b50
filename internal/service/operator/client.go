package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/models"
)

const (
	defaultRequestTimeout = 10 * time.Second

	// Refresh the token this long before its reported expiry, so a
	// token is never presented right at the edge of its lifetime
	tokenExpiryMargin = 60 * time.Second
)

type Config struct {
	// Auth and resource calls go to different hosts on some operators,
	// hence two base URLs
	AuthBaseURL string
	APIBaseURL  string

	Username string
	Password string

	// Per-request timeout. Default is used when zero.
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	logger logger.Logger

	// Cached bearer token, replaced wholesale on refresh. The mutex
	// covers the check-and-refresh sequence so concurrent callers
	// finding an expired token trigger one auth exchange, not many.
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(cfg Config, l logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: l,
	}
}

// getValidToken returns the cached token, refreshing it first when it is
// absent or within the safety margin of expiry. The lock is held across
// the refresh only, never across resource calls.
func (c *Client) getValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"userName": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrAuthenticationFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthBaseURL+"/accounts/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrAuthenticationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth endpoint returned %d", apperrors.ErrAuthenticationFailed, resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode token response: %w", apperrors.ErrAuthenticationFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", apperrors.ErrAuthenticationFailed)
	}

	c.token = tokenResp.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpiryMargin)
	c.logger.Debug("Operator token refreshed", "expires_at", c.expiresAt)

	return c.token, nil
}

// do performs an authenticated request against the resource API and
// returns the status code with the fully read body. The body is drained
// before the per-call timeout is released: decoding after do returns
// must never race the request context.
func (c *Client) do(ctx context.Context, method string, path string) (int, []byte, error) {
	token, err := c.getValidToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

func (c *Client) StartCharging(ctx context.Context, chargerID string) error {
	return c.command(ctx, chargerID, "start_charging")
}

func (c *Client) StopCharging(ctx context.Context, chargerID string) error {
	return c.command(ctx, chargerID, "stop_charging")
}

func (c *Client) command(ctx context.Context, chargerID string, command string) error {
	status, _, err := c.do(ctx, http.MethodPost, "/chargers/"+chargerID+"/commands/"+command)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthenticationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", apperrors.ErrCommandFailed, err)
	}

	if status < 200 || status > 299 {
		c.logger.Warn("Operator rejected command", "command", command, "charger_id", chargerID, "status_code", status)
		return fmt.Errorf("%w: %s returned %d", apperrors.ErrCommandFailed, command, status)
	}

	return nil
}

// sessionPayload mirrors the operator's session document
type sessionPayload struct {
	ChargerID              string           `json:"chargerId"`
	SessionID              int64            `json:"sessionId"`
	SessionStart           time.Time        `json:"sessionStart"`
	SessionEnd             *time.Time       `json:"sessionEnd"`
	SessionEnergy          decimal.Decimal  `json:"sessionEnergy"`
	PricePrKWhIncludingVAT *decimal.Decimal `json:"pricePrKwhIncludingVat"`
	CostIncludingVAT       *decimal.Decimal `json:"costIncludingVat"`
}

func (p sessionPayload) toModel() *models.Session {
	return &models.Session{
		ChargerID:    p.ChargerID,
		SessionID:    p.SessionID,
		SessionStart: p.SessionStart,
		SessionEnd:   p.SessionEnd,
		Energy:       p.SessionEnergy,
		PricePerKWh:  p.PricePrKWhIncludingVAT,
		Cost:         p.CostIncludingVAT,
	}
}

func (c *Client) OngoingSession(ctx context.Context, chargerID string) (*models.Session, error) {
	return c.session(ctx, "/chargers/"+chargerID+"/sessions/ongoing")
}

func (c *Client) LatestSession(ctx context.Context, chargerID string) (*models.Session, error) {
	return c.session(ctx, "/chargers/"+chargerID+"/sessions/latest")
}

func (c *Client) session(ctx context.Context, path string) (*models.Session, error) {
	status, body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthenticationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionUnavailable, err)
	}

	switch status {
	case http.StatusOK:
		var payload sessionPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("%w: failed to decode session: %w", apperrors.ErrSessionUnavailable, err)
		}
		return payload.toModel(), nil
	case http.StatusNotFound:
		// No session on this charger right now
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: session endpoint returned %d", apperrors.ErrSessionUnavailable, status)
	}
}

func (c *Client) ChargerState(ctx context.Context, chargerID string) (models.ChargerState, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/chargers/"+chargerID+"/state")
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("state endpoint returned %d", status)
	}

	var state models.ChargerState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("failed to decode charger state: %w", err)
	}

	return state, nil
}

func (c *Client) Chargers(ctx context.Context) ([]models.Charger, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/chargers")
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("chargers endpoint returned %d", status)
	}

	var payload []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode chargers: %w", err)
	}

	chargers := make([]models.Charger, 0, len(payload))
	for _, ch := range payload {
		chargers = append(chargers, models.Charger{ID: ch.ID, Name: ch.Name})
	}

	return chargers, nil
}
