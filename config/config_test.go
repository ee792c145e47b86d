package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_LIST", "a, b , ,c")

	assert.Equal(t, "hello", getEnv("TEST_STR", "x"))
	assert.Equal(t, "x", getEnv("TEST_UNSET", "x"))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvStringSlice("TEST_LIST", nil))
	assert.Equal(t, []string{"d"}, getEnvStringSlice("TEST_UNSET", []string{"d"}))
}

func TestDatabaseURLFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "hub")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "insights")

	assert.Equal(t,
		"postgres://hub:pw@db.internal:5432/insights?sslmode=require",
		databaseURL())

	// An explicit URL always wins.
	t.Setenv("DATABASE_URL", "postgres://other")
	assert.Equal(t, "postgres://other", databaseURL())
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		App:       AppConfig{Environment: EnvDevelopment},
		HTTP:      HTTPConfig{Port: 8080},
		Scheduler: SchedulerConfig{SyncRosterInterval: 15 * time.Minute},
	}
	require.NoError(t, cfg.Validate())

	cfg.HTTP.Port = 70000
	assert.Error(t, cfg.Validate())
	cfg.HTTP.Port = 8080

	cfg.Scheduler.SyncRosterInterval = time.Second
	assert.Error(t, cfg.Validate())
	cfg.Scheduler.SyncRosterInterval = time.Hour

	// Production requires the external endpoints and admin keys.
	cfg.App.Environment = EnvProduction
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "HTTP_ADMIN_KEY_HASHES")
}
