package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/jwt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassify(t *testing.T) {
	out, err := run(t, "classify", "I", "want", "to", "kill", "myself")
	require.NoError(t, err)
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, `"kill myself"`)
	assert.Contains(t, out, "emergency: true")

	out, err = run(t, "classify", "good", "morning")
	require.NoError(t, err)
	assert.Contains(t, out, "low")
	assert.Contains(t, out, "escalates: no")

	_, err = run(t, "classify")
	assert.Error(t, err)
}

func TestLexicon(t *testing.T) {
	out, err := run(t, "lexicon", "--min-level", "critical")
	require.NoError(t, err)
	assert.Contains(t, out, "kill myself")
	assert.NotContains(t, out, "scared")

	_, err = run(t, "lexicon", "--min-level", "urgent")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg := &config.Config{}
	cfg.JWT.Secret = "cli-secret"
	cfg.JWT.Expiry = time.Hour

	cmd := newTokenCmd(func() *config.Config { return cfg })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "specialist-9", "--role", "specialist"})
	require.NoError(t, cmd.Execute())

	svc, err := jwt.NewService("cli-secret", time.Hour)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "specialist-9", claims.UserID())
	assert.Equal(t, jwt.RoleSpecialist, claims.Role)
}
