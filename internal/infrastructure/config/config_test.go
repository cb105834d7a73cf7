package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "possync", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "8090", cfg.App.AdminPort)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, time.Second, cfg.Sync.BaseBackoff)
	assert.Equal(t, 5*time.Minute, cfg.Sync.MaxBackoff)
	assert.Equal(t, 5, cfg.Sync.EscalationThreshold)
	assert.Equal(t, 100, cfg.Sync.BatchLimit)
	assert.Contains(t, cfg.HTTP.CORSAllowHeaders, "Idempotency-Key")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("rejects idle conns above open conns", func(t *testing.T) {
		cfg := base()
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns + 1
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects base backoff above max", func(t *testing.T) {
		cfg := base()
		cfg.Sync.BaseBackoff = 10 * time.Minute
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects zero escalation threshold", func(t *testing.T) {
		cfg := base()
		cfg.Sync.EscalationThreshold = 0
		assert.Error(t, cfg.validate())
	})

	t.Run("production requires sslmode and password", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		assert.Error(t, cfg.validate())

		cfg.Database.Password = "secret"
		assert.Error(t, cfg.validate()) // sslmode still disable

		cfg.Database.SSLMode = "require"
		assert.NoError(t, cfg.validate())
	})

	t.Run("production rejects wildcard CORS", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
		assert.Error(t, cfg.validate())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "pos",
		Password: "p@ss/word",
		DBName:   "possync",
		SSLMode:  "require",
	}

	dsn := d.DSN()

	require.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Special characters must be escaped, not passed through
	assert.NotContains(t, dsn, "p@ss/word")
}
