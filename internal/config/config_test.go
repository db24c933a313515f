package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET", "signing-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Autosave.Delay)
	assert.Equal(t, 30*time.Minute, cfg.Autosave.SessionIdleTTL)
	assert.Equal(t, "/sign-in", cfg.Auth.SignInURL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("JWT_SECRET", "signing-key")

	_, err := Load()
	assert.EqualError(t, err, "DB_PASSWORD is required")

	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoad_SQLiteDriverSkipsPostgresChecks(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("JWT_SECRET", "signing-key")
	t.Setenv("AUTOSAVE_DELAY", "250ms")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./bpls.db", cfg.Database.DSN())
	assert.Equal(t, 250*time.Millisecond, cfg.Autosave.Delay)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid AUTOSAVE_DELAY")

	t.Setenv("AUTOSAVE_DELAY", "1s")
	t.Setenv("WIZARD_SESSION_IDLE_TTL", "forever")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid WIZARD_SESSION_IDLE_TTL")
}

func TestDatabaseConfig_DSNEscapesPassword(t *testing.T) {
	c := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db",
		Port:     5432,
		Username: "bpls",
		Password: "p@ss/word",
		Name:     "bpls_db",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://bpls:p%40ss%2Fword@db:5432/bpls_db?sslmode=disable", c.DSN())
}
