package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/pkg/logger"
)

// LogNotifier writes escalations to the structured log as alerts
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, rec models.EscalationRecord) error {
	n.log.WithSessionID(rec.SessionID).Alert("Crisis escalation",
		"escalationId", rec.ID,
		"messageId", rec.MessageID,
		"level", rec.Level,
		"reason", rec.Reason,
		"police", rec.Channels.Police,
		"ambulance", rec.Channels.Ambulance,
		"crisisTeam", rec.Channels.CrisisTeam,
	)
	return nil
}

// RedisNotifier appends escalations to a Redis stream consumed by the
// specialist routing service
type RedisNotifier struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisNotifier creates a RedisNotifier writing to stream, trimmed to roughly maxLen entries
func NewRedisNotifier(rdb redis.Cmdable, stream string, maxLen int64) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (n *RedisNotifier) Name() string { return "redis" }

func (n *RedisNotifier) Notify(ctx context.Context, rec models.EscalationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"escalationId": rec.ID,
			"sessionId":    rec.SessionID,
			"level":        string(rec.Level),
			"escalation":   string(payload),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}

	if err := n.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", n.stream, err)
	}
	return nil
}

// Recent returns up to count escalations from the stream, newest first
func (n *RedisNotifier) Recent(ctx context.Context, count int64) ([]models.EscalationRecord, error) {
	entries, err := n.rdb.XRevRangeN(ctx, n.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", n.stream, err)
	}

	out := make([]models.EscalationRecord, 0, len(entries))
	for _, e := range entries {
		raw, ok := e.Values["escalation"].(string)
		if !ok {
			continue
		}
		var rec models.EscalationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("malformed stream entry %s: %w", e.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// WebhookNotifier posts escalations as JSON to an HTTP endpoint
type WebhookNotifier struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier. token is sent as a bearer
// token when set.
func NewWebhookNotifier(url, token string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, token: token, client: client}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, rec models.EscalationRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Escalation-ID", rec.ID)
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
