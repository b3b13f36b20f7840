package notify

import (
	"github.com/HerbHall/linkpulse/pkg/plugin"
)

// FromConfig builds the notifier chain described by the "notify" config
// section. The gateway channel is used when a group id is set and the
// webhook channel when a webhook url is set. With neither, Nop is returned.
func FromConfig(cfg plugin.Config) Notifier {
	var chain Multi

	if groupID := cfg.GetString("group_id"); groupID != "" {
		chain = append(chain, NewGatewayNotifier(GatewayConfig{
			URL:     cfg.GetString("gateway_url"),
			GroupID: groupID,
			Timeout: cfg.GetDuration("timeout"),
		}))
	}

	if url := cfg.GetString("webhook_url"); url != "" {
		chain = append(chain, NewWebhookNotifier(WebhookConfig{
			URL:     url,
			Secret:  cfg.GetString("webhook_secret"),
			Timeout: cfg.GetDuration("timeout"),
		}))
	}

	switch len(chain) {
	case 0:
		return Nop{}
	case 1:
		return chain[0]
	default:
		return chain
	}
}
