package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.MongoTransactions)
	assert.Equal(t, "push.message", cfg.PushRoutingKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", DriverMongo)
	t.Setenv("MONGO_TRANSACTIONS", "true")
	t.Setenv("JWT_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.DBDriver)
	assert.True(t, cfg.MongoTransactions)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("DB_DRIVER", "cassandra")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DB_DRIVER", DriverMemory)
	t.Setenv("JWT_TTL", "soon")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}
