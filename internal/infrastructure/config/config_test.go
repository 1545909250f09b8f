package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"INVOICING_APP_NAME":                 os.Getenv("INVOICING_APP_NAME"),
		"INVOICING_APP_ENV":                  os.Getenv("INVOICING_APP_ENV"),
		"INVOICING_APP_PORT":                 os.Getenv("INVOICING_APP_PORT"),
		"INVOICING_DATABASE_HOST":            os.Getenv("INVOICING_DATABASE_HOST"),
		"INVOICING_DATABASE_PORT":            os.Getenv("INVOICING_DATABASE_PORT"),
		"INVOICING_DATABASE_USER":            os.Getenv("INVOICING_DATABASE_USER"),
		"INVOICING_DATABASE_PASSWORD":        os.Getenv("INVOICING_DATABASE_PASSWORD"),
		"INVOICING_DATABASE_DBNAME":          os.Getenv("INVOICING_DATABASE_DBNAME"),
		"INVOICING_DATABASE_SSLMODE":         os.Getenv("INVOICING_DATABASE_SSLMODE"),
		"INVOICING_DATABASE_MAX_OPEN_CONNS":  os.Getenv("INVOICING_DATABASE_MAX_OPEN_CONNS"),
		"INVOICING_DATABASE_MAX_IDLE_CONNS":  os.Getenv("INVOICING_DATABASE_MAX_IDLE_CONNS"),
		"INVOICING_BILLING_NUMBERING_SCHEME": os.Getenv("INVOICING_BILLING_NUMBERING_SCHEME"),
		"INVOICING_BILLING_DEFAULT_DUE_DAYS": os.Getenv("INVOICING_BILLING_DEFAULT_DUE_DAYS"),
		"INVOICING_IDENTITY_BASE_URL":        os.Getenv("INVOICING_IDENTITY_BASE_URL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "invoicing-service", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "invoicing", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "sequential", cfg.Billing.NumberingScheme)
		assert.Equal(t, 30, cfg.Billing.DefaultDueDays)
		assert.Equal(t, "EUR", cfg.Billing.DefaultCurrency)
		assert.Equal(t, []int{30, 45, 60}, cfg.Billing.DunningThresholds)
		assert.Len(t, cfg.Billing.DunningTemplates, 3)
		assert.Equal(t, "2s", cfg.Identity.Timeout.String())
	})

	t.Run("loads values from environment variables with INVOICING prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("INVOICING_APP_NAME", "test-app")
		os.Setenv("INVOICING_APP_PORT", "9000")
		os.Setenv("INVOICING_DATABASE_HOST", "testdb.local")
		os.Setenv("INVOICING_DATABASE_PORT", "5433")
		os.Setenv("INVOICING_BILLING_NUMBERING_SCHEME", "random")
		os.Setenv("INVOICING_BILLING_DEFAULT_DUE_DAYS", "14")
		os.Setenv("INVOICING_IDENTITY_BASE_URL", "http://identity.internal:9090")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "random", cfg.Billing.NumberingScheme)
		assert.Equal(t, 14, cfg.Billing.DefaultDueDays)
		assert.Equal(t, "http://identity.internal:9090", cfg.Identity.BaseURL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("INVOICING_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("INVOICING_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown numbering scheme", func(t *testing.T) {
		clearEnv()
		os.Setenv("INVOICING_BILLING_NUMBERING_SCHEME", "fibonacci")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "numbering_scheme")
	})

	t.Run("production requires database password", func(t *testing.T) {
		clearEnv()
		os.Setenv("INVOICING_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "billing",
		Password: "p@ss/word",
		DBName:   "invoicing",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "sslmode=disable")
	// Special characters in the password must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", r.Addr())
}
