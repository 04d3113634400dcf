package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "CHAT_DEFAULT_LANGUAGE", "ESCALATION_HIGH_FORCES_EMERGENCY",
		"ESCALATION_NOTIFY_TIMEOUT", "NOTIFY_SINKS", "REDIS_ESCALATION_STREAM"} {
		t.Setenv(key, "")
	}

	cfg := load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "en", cfg.Chat.DefaultLanguage)
	assert.False(t, cfg.Escalation.HighForcesEmergency)
	assert.Equal(t, 5*time.Second, cfg.Escalation.NotifyTimeout)
	assert.Equal(t, []string{"log"}, cfg.Escalation.Sinks)
	assert.Equal(t, "crisis:escalations", cfg.Redis.Stream)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ESCALATION_HIGH_FORCES_EMERGENCY", "true")
	t.Setenv("ESCALATION_NOTIFY_TIMEOUT", "750ms")
	t.Setenv("NOTIFY_SINKS", "log, redis ,,webhook")
	t.Setenv("CHAT_MAX_CONTENT_LENGTH", "not-a-number")
	t.Setenv("RATE_LIMIT", "2.5")

	cfg := load()

	assert.True(t, cfg.Escalation.HighForcesEmergency)
	assert.Equal(t, 750*time.Millisecond, cfg.Escalation.NotifyTimeout)
	assert.Equal(t, []string{"log", "redis", "webhook"}, cfg.Escalation.Sinks)
	assert.Equal(t, 4000, cfg.Chat.MaxContentLength, "invalid values fall back to the default")
	assert.InDelta(t, 2.5, cfg.Security.RateLimit, 1e-9)

	assert.True(t, cfg.SinkEnabled("REDIS"))
	assert.False(t, cfg.SinkEnabled("outbox"))
}

func TestDSN(t *testing.T) {
	cfg := load()
	cfg.Database.Host = "db"
	cfg.Database.Name = "crisis"

	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "dbname=crisis")
}
