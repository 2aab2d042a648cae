package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8084, cfg.HTTPPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30, cfg.EditWindowDays)
	assert.Equal(t, 5, cfg.MaxImages)
	assert.Equal(t, 1000, cfg.SellerResponseMaxLen)
	assert.Equal(t, 30*24*time.Hour, cfg.EditWindow())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REVIEW_EDIT_WINDOW_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 14*24*time.Hour, cfg.EditWindow())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero edit window", func(t *testing.T) {
		t.Setenv("REVIEW_EDIT_WINDOW_DAYS", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestPostgresConfig(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_DB", "reviews_test")

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db.internal", pg.Host)
	assert.Contains(t, pg.DSN(), "reviews_test")
}
