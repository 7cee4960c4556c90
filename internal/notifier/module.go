package notifier

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/config"
)

// ProvideNotifier creates the Notifier backend selected by
// Config.NotifierBackend.
func ProvideNotifier(cfg *config.Config, logger *zap.Logger) (Notifier, error) {
	switch cfg.NotifierBackend {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("webhook notifier requires WEBHOOK_URL")
		}
		return NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout, cfg.WebhookRetries, cfg.WebhookRetryDelay, logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier backend %q", cfg.NotifierBackend)
	}
}

// Module provides the notifier dependency to the fx container.
var Module = fx.Options(
	fx.Provide(ProvideNotifier),
)
