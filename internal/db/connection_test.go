package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_MAX_CONNS", "20")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "corridor", cfg.Database)
	assert.Equal(t, int32(20), cfg.MaxConns)
	assert.Equal(t,
		"host=db.internal port=6543 dbname=corridor user=postgres password= sslmode=disable",
		cfg.ConnString())
}
