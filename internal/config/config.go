// Package config loads runtime configuration: a .env file if present, then
// the environment via envconfig struct tags, then struct validation.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/example/slot-scheduler/internal/booking"
)

type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required"`

	// Session cookie keys, base64 (32 bytes each; see the keys command).
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY" validate:"required,base64"`
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY" validate:"required,base64"`

	// Key for sealing the portal password at rest, base64, 32 bytes.
	CredEncKey string `envconfig:"CRED_ENC_KEY" validate:"required,base64"`

	PortalBaseURL  string `envconfig:"PORTAL_BASE_URL" default:"https://my.flame.edu.in" validate:"url"`
	PortalUsername string `envconfig:"PORTAL_USERNAME"`
	PortalPassword string `envconfig:"PORTAL_PASSWORD"`

	// The portal runs on campus wall-clock time; all slot math happens here.
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Kolkata" validate:"timezone"`

	// Opening-window policy knobs. The portal opens bookings LeadHours before
	// a slot; attempts are considered timely for GraceMinutes after opening.
	LeadHours    int `envconfig:"LEAD_HOURS" default:"24" validate:"min=1"`
	GraceMinutes int `envconfig:"GRACE_MINUTES" default:"60" validate:"min=1"`

	AttemptTimeoutSeconds int `envconfig:"ATTEMPT_TIMEOUT_SECONDS" default:"300" validate:"min=1"`
}

func Load() (Config, error) {
	// Absent .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) Window() booking.Window {
	return booking.Window{
		Lead:  time.Duration(c.LeadHours) * time.Hour,
		Grace: time.Duration(c.GraceMinutes) * time.Minute,
	}
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

func (c Config) SessionKeys() (hash, block []byte, err error) {
	hash, err = decodeB64(c.CookieHashKey)
	if err != nil {
		return nil, nil, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
	}
	block, err = decodeB64(c.CookieBlockKey)
	if err != nil {
		return nil, nil, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
	}
	return hash, block, nil
}

func (c Config) CredKey() ([]byte, error) {
	key, err := decodeB64(c.CredEncKey)
	if err != nil {
		return nil, fmt.Errorf("CRED_ENC_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CRED_ENC_KEY must decode to 32 bytes (got %d)", len(key))
	}
	return key, nil
}

func decodeB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
