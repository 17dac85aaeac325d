package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64Key(b byte) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(b), 32)))
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/slotsched")
	t.Setenv("COOKIE_HASH_KEY", b64Key('h'))
	t.Setenv("COOKIE_BLOCK_KEY", b64Key('b'))
	t.Setenv("CRED_ENC_KEY", b64Key('k'))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "https://my.flame.edu.in", cfg.PortalBaseURL)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)

	w := cfg.Window()
	assert.Equal(t, 24*time.Hour, w.Lead)
	assert.Equal(t, time.Hour, w.Grace)
	assert.Equal(t, 5*time.Minute, cfg.AttemptTimeout())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LEAD_HOURS", "48")
	t.Setenv("GRACE_MINUTES", "15")
	t.Setenv("TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 48*time.Hour, cfg.Window().Lead)
	assert.Equal(t, 15*time.Minute, cfg.Window().Grace)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"hash key not base64", "COOKIE_HASH_KEY", "!!not-base64!!"},
		{"bad timezone", "TIMEZONE", "Mars/Olympus"},
		{"zero lead", "LEAD_HOURS", "0"},
		{"bad portal url", "PORTAL_BASE_URL", "not a url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestSessionKeys(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	hash, block, err := cfg.SessionKeys()
	require.NoError(t, err)
	assert.Len(t, hash, 32)
	assert.Len(t, block, 32)
}

func TestCredKeyLength(t *testing.T) {
	setRequired(t)
	t.Setenv("CRED_ENC_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.CredKey()
	require.Error(t, err)
}
