package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.SessionStore)
	assert.Equal(t, CacheMemory, cfg.CartCache)
	assert.Equal(t, 3*time.Second, cfg.ToastTTL)
	assert.Equal(t, 300*time.Millisecond, cfg.BadgeBounceTTL)
	assert.True(t, cfg.CartShipping.Equal(decimal.NewFromInt(45)))
	assert.True(t, cfg.CheckoutShipping.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "csrftoken", cfg.CSRFCookie)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SESSION_STORE", "postgres")
	t.Setenv("CART_CACHE", "redis")
	t.Setenv("TOAST_TTL", "5s")
	t.Setenv("CART_SHIPPING", "12.50")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.SessionStore)
	assert.Equal(t, CacheRedis, cfg.CartCache)
	assert.Equal(t, 5*time.Second, cfg.ToastTTL)
	assert.Equal(t, "12.5", cfg.CartShipping.String())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestFromEnvRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("SESSION_STORE", "sqlite")
	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("CART_CACHE", "memcached")
	_, err = FromEnv()
	require.Error(t, err)
}

func TestValidateNegativeShipping(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	cfg.CartShipping = decimal.NewFromInt(-1)
	assert.Error(t, cfg.Validate())
}

func TestValidateFileStoreNeedsPath(t *testing.T) {
	t.Setenv("SESSION_STORE", "file")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ".storefront/session.json", cfg.SessionFile)

	cfg.SessionFile = " "
	assert.Error(t, cfg.Validate())
}
