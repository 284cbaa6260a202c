package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabibdesk/internal/config"
	"tabibdesk/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, "8080", cfg.WebPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 180, cfg.InactiveAfterDays)
	assert.Equal(t, "Africa/Cairo", cfg.DefaultTimezone)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("TABIB_STORE", "postgres")
	t.Setenv("TABIB_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("TABIB_RATE_LIMIT_BURST", "3")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimitBurst)
}

func TestLoadFromDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-dotenv-secret-123\nWEB_PORT=9999\n"), 0o600))
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("WEB_PORT", "")
	os.Unsetenv("WEB_PORT")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv-secret-123", cfg.JWTSecret)
	assert.Equal(t, "9999", cfg.WebPort)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad store", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "TABIB_STORE": "supabase"}},
		{"bad timezone", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "TABIB_DEFAULT_TIMEZONE": "Mars/Olympus"}},
		{"zero inactive days", map[string]string{"JWT_SECRET": "0123456789abcdef0123", "TABIB_INACTIVE_AFTER_DAYS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}

func TestParseSchedule(t *testing.T) {
	src := []byte(`
slot_minutes: 15
days:
  Monday:
    - {start: "09:00", end: "12:00"}
    - {start: "16:00", end: "20:00"}
  friday: []
`)
	s, err := config.ParseSchedule(src)
	require.NoError(t, err)
	assert.Equal(t, 15, s.SlotMinutes)
	assert.Equal(t, []model.Shift{{Start: "09:00", End: "12:00"}, {Start: "16:00", End: "20:00"}}, s.Days[time.Monday])
	assert.Empty(t, s.Days[time.Friday])

	out, err := config.MarshalSchedule(s)
	require.NoError(t, err)
	again, err := config.ParseSchedule(out)
	require.NoError(t, err)
	assert.Equal(t, s.Days[time.Monday], again.Days[time.Monday])
}

func TestParseScheduleErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unknown day": "slot_minutes: 15\ndays:\n  funday: []\n",
		"bad slot":    "slot_minutes: 0\n",
		"bad clock":   "slot_minutes: 15\ndays:\n  monday:\n    - {start: \"9am\", end: \"12:00\"}\n",
		"not yaml":    "slot_minutes: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseSchedule([]byte(src))
			require.Error(t, err)
		})
	}
}

func TestLoadScheduleDefault(t *testing.T) {
	s, err := config.LoadSchedule("")
	require.NoError(t, err)
	assert.Equal(t, 20, s.SlotMinutes)
	assert.Empty(t, s.Days[time.Friday])
}
