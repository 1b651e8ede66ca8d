package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"DATABASE_URL":            "",
		"POSTGRES_USER":           "shop",
		"POSTGRES_PASSWORD":       "secret",
		"POSTGRES_DB":             "shop",
		"POSTGRES_HOST":           "localhost",
		"POSTGRES_PORT":           "",
		"JWT_SECRET":              "jwt",
		"KAFKA_BROKERS":           "",
		"CHECKOUT_RATE_LIMIT":     "",
		"SHIPPING_STANDARD_COST":  "",
		"SHIPPING_EXPRESS_COST":   "",
		"FREE_SHIPPING_THRESHOLD": "",
		"OUTBOX_POLL_INTERVAL":    "",
		"OUTBOX_LEASE":            "",
	} {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 10, cfg.CheckoutRateLimit)
	assert.Equal(t, "4.99", cfg.ShippingStandardCost.StringFixed(2))
	assert.Equal(t, "9.99", cfg.ShippingExpressCost.StringFixed(2))
	assert.Equal(t, "100.00", cfg.FreeShippingThreshold.StringFixed(2))
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 5*time.Minute, cfg.OutboxLease)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "host=localhost port=5432 user=shop password=secret dbname=shop sslmode=disable", cfg.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/shop")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "250")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_LEASE", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/shop", cfg.DSN())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "250", cfg.FreeShippingThreshold.String())
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 30*time.Second, cfg.OutboxLease)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string][2]string{
		"JWT_SECRET is required":       {"JWT_SECRET", ""},
		"POSTGRES_USER is required":    {"POSTGRES_USER", ""},
		"POSTGRES_PORT must be number": {"POSTGRES_PORT", "abc"},
		"must be >= 0":                 {"SHIPPING_STANDARD_COST", "-1"},
		"CHECKOUT_RATE_LIMIT must be":  {"CHECKOUT_RATE_LIMIT", "0"},
		"must be duration":             {"OUTBOX_POLL_INTERVAL", "soon"},
	}

	for want, kv := range cases {
		t.Run(want, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}
