package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/logger"
)

func sampleRecord() models.EscalationRecord {
	return models.EscalationRecord{
		ID:         "esc-1",
		SessionID:  "sess-1",
		MessageID:  "msg-1",
		Level:      models.CrisisCritical,
		Reason:     "kill myself",
		Excerpt:    "I want to kill myself",
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Channels:   models.EmergencyChannels{Police: true, Ambulance: true, CrisisTeam: true},
		Resolution: models.ResolutionPending,
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got models.EscalationRecord
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "esc-1", r.Header.Get("X-Escalation-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "secret-token", srv.Client())
	require.NoError(t, n.Notify(context.Background(), sampleRecord()))

	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, models.CrisisCritical, got.Level)
	assert.True(t, got.Channels.Police)
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, "", srv.Client()).Notify(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRedisNotifierSurfacesConnectionErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	n := NewRedisNotifier(rdb, "crisis:escalations", 100)
	err := n.Notify(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crisis:escalations")

	_, err = n.Recent(context.Background(), 10)
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logger.Nop())
	assert.Equal(t, "log", n.Name())
	assert.NoError(t, n.Notify(context.Background(), sampleRecord()))
}

func TestOutboxEntry(t *testing.T) {
	entry, err := newOutboxEntry(sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, "esc-1", entry.ID)
	assert.Equal(t, "critical", entry.Level)
	assert.Equal(t, "escalation_outbox", entry.TableName())

	var payload models.EscalationRecord
	require.NoError(t, json.Unmarshal([]byte(entry.Payload), &payload))
	assert.Equal(t, "I want to kill myself", payload.Excerpt)
}

func TestOutboxNotifierBuildsInsert(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)

	entry, err := newOutboxEntry(sampleRecord())
	require.NoError(t, err)
	stmt := db.Create(&entry).Statement
	assert.Contains(t, stmt.SQL.String(), `INSERT INTO "escalation_outbox"`)
	assert.Contains(t, stmt.SQL.String(), `"session_id"`)
	assert.Equal(t, "esc-1", entry.ID)

	assert.NoError(t, NewOutboxNotifier(db).Notify(context.Background(), sampleRecord()), "dry run never reaches the database")
}

func TestBuildNotifiers(t *testing.T) {
	cfg := &config.Config{}
	cfg.Escalation.Sinks = []string{"log", "webhook"}
	cfg.Escalation.WebhookURL = "http://example.invalid/hook"

	sinks, err := BuildNotifiers(cfg, SinkDeps{Log: logger.Nop()})
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "log", sinks[0].Name())
	assert.Equal(t, "webhook", sinks[1].Name())

	cfg.Escalation.Sinks = []string{"redis"}
	_, err = BuildNotifiers(cfg, SinkDeps{})
	assert.Error(t, err)

	cfg.Escalation.Sinks = []string{"pager"}
	_, err = BuildNotifiers(cfg, SinkDeps{})
	assert.Error(t, err)

	cfg.Escalation.Sinks = nil
	_, err = BuildNotifiers(cfg, SinkDeps{})
	assert.ErrorIs(t, err, ErrNoSinks)
}
