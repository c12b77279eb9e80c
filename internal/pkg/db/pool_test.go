package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"santapot/internal/config"
)

func parse(t *testing.T, cfg *config.DatabaseConfig) *pgxpool.Config {
	t.Helper()
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	require.NoError(t, err)
	tune(pc, cfg)
	return pc
}

func TestTuneDefaults(t *testing.T) {
	pc := parse(t, &config.DatabaseConfig{Host: "localhost", Port: 5432, User: "santapot", Name: "santapot", PoolSize: 2})

	assert.Equal(t, int32(2), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "santapot", pc.ConnConfig.RuntimeParams["application_name"])
}

func TestTuneConfigured(t *testing.T) {
	pc := parse(t, &config.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		User:            "santapot",
		Name:            "santapot",
		PoolSize:        20,
		ConnectTimeout:  3 * time.Second,
		MaxConnLifetime: 10 * time.Minute,
		MaxConnIdleTime: time.Minute,
	})

	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, 10*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
}
