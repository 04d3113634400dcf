package notify

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/logger"
)

// SinkDeps are the connections sinks may need. Only the ones for enabled
// sinks have to be set.
type SinkDeps struct {
	Log          *logger.Logger
	Redis        redis.Cmdable
	DB           *gorm.DB
	HTTPClient   *http.Client
	WebhookToken string
}

// BuildNotifiers creates the sinks listed in NOTIFY_SINKS
func BuildNotifiers(cfg *config.Config, deps SinkDeps) ([]Notifier, error) {
	var out []Notifier
	for _, name := range cfg.Escalation.Sinks {
		switch strings.ToLower(name) {
		case "log":
			out = append(out, NewLogNotifier(deps.Log))
		case "redis":
			if deps.Redis == nil {
				return nil, fmt.Errorf("redis sink enabled without a redis client")
			}
			out = append(out, NewRedisNotifier(deps.Redis, cfg.Redis.Stream, cfg.Redis.MaxLen))
		case "webhook":
			if cfg.Escalation.WebhookURL == "" {
				return nil, fmt.Errorf("webhook sink enabled without NOTIFY_WEBHOOK_URL")
			}
			out = append(out, NewWebhookNotifier(cfg.Escalation.WebhookURL, deps.WebhookToken, deps.HTTPClient))
		case "outbox":
			if deps.DB == nil {
				return nil, fmt.Errorf("outbox sink enabled without a database")
			}
			outbox := NewOutboxNotifier(deps.DB)
			if err := outbox.Migrate(); err != nil {
				return nil, fmt.Errorf("failed to migrate escalation outbox: %w", err)
			}
			out = append(out, outbox)
		default:
			return nil, fmt.Errorf("unknown notification sink %q", name)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSinks
	}
	return out, nil
}
