package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Compile-time interface guard.
var _ Notifier = (*GatewayNotifier)(nil)

// DefaultGatewayTimeout bounds a single delivery to the messaging gateway.
const DefaultGatewayTimeout = 8 * time.Second

// GatewayConfig holds the messaging gateway endpoint and target group.
type GatewayConfig struct {
	URL     string        `mapstructure:"gateway_url"`
	GroupID string        `mapstructure:"group_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// gatewayPayload is the JSON body the gateway's send endpoint accepts.
type gatewayPayload struct {
	GroupID string `json:"group_id"`
	Message string `json:"mensagem"`
}

// GatewayNotifier posts messages to a local chat gateway which relays
// them to a group conversation.
type GatewayNotifier struct {
	client *http.Client
	cfg    GatewayConfig
}

// NewGatewayNotifier creates a gateway notifier. A zero timeout uses
// DefaultGatewayTimeout.
func NewGatewayNotifier(cfg GatewayConfig) *GatewayNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGatewayTimeout
	}
	return &GatewayNotifier{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Notify sends text to the configured group.
func (g *GatewayNotifier) Notify(ctx context.Context, text string) error {
	if g.cfg.URL == "" {
		return fmt.Errorf("gateway notifier: url not configured")
	}

	body, err := json.Marshal(gatewayPayload{GroupID: g.cfg.GroupID, Message: text})
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway POST %s: %w", g.cfg.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway POST %s: status %d", g.cfg.URL, resp.StatusCode)
	}
	return nil
}

// Type returns the notifier type identifier.
func (g *GatewayNotifier) Type() string {
	return "gateway"
}
