package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendModeRemote, cfg.Backend.Mode)
	assert.Equal(t, 2, cfg.Backend.RetryMax)
	assert.Equal(t, time.Minute, cfg.Cache.AutoApplyTTL)
	assert.Equal(t, "memory", cfg.Checkout.AppliedStore)
	assert.Equal(t, "shop", cfg.Postgres.DBName)
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	t.Setenv("PRICING_BACKEND_MODE", "local")
	t.Setenv("PRICING_CHECKOUT_APPLIED_STORE", "redis")
	t.Setenv("PRICING_CACHE_LOOKUP_TTL", "5s")
	t.Setenv("PRICING_LOGGING_LEVEL", "debug")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendModeLocal, cfg.Backend.Mode)
	assert.Equal(t, "redis", cfg.Checkout.AppliedStore)
	assert.Equal(t, 5*time.Second, cfg.Cache.LookupTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backend.Mode = "hybrid"
	assert.Error(t, cfg.Validate())

	cfg = GetDefaultConfig()
	cfg.Backend.BaseURL = ""
	assert.Error(t, cfg.Validate(), "remote mode needs a base url")

	cfg.Backend.Mode = BackendModeLocal
	assert.NoError(t, cfg.Validate())
}
