package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Version)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int64(250), cfg.Platform.FeeBasisPoints)
	assert.True(t, cfg.Features.EnforceOverlapCheck)
	assert.Equal(t, 10, cfg.Booking.MinPurposeLength)
	assert.Equal(t, 4, cfg.Tracking.Workers)
	assert.Equal(t, 10*time.Second, cfg.Tracking.FetchTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("TRACKING_WORKERS", "9")
	t.Setenv("TRACKING_FETCH_TIMEOUT", "3s")
	t.Setenv("FEATURE_ENFORCE_OVERLAP_CHECK", "false")
	t.Setenv("PLATFORM_FEE_BASIS_POINTS", "100")
	t.Setenv("VERSION", "2027-01-01")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 9, cfg.Tracking.Workers)
	assert.Equal(t, 3*time.Second, cfg.Tracking.FetchTimeout)
	assert.False(t, cfg.Features.EnforceOverlapCheck)
	assert.Equal(t, int64(100), cfg.Platform.FeeBasisPoints)
	assert.Equal(t, "2027-01-01", cfg.Version)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"fee above 100%", func(c *Config) { c.Platform.FeeBasisPoints = 10001 }},
		{"no workers", func(c *Config) { c.Tracking.Workers = 0 }},
		{"zero deadline", func(c *Config) { c.Tracking.TickDeadline = 0 }},
		{"empty version", func(c *Config) { c.Version = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("does-not-exist.env")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "bluefleet.lifecycle", cfg.Broker.Exchange)
	assert.Equal(t, 2*time.Minute, cfg.Tracking.TickDeadline)
}
