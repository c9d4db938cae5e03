package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "herd.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("HERD_PORT", "4000")
	t.Setenv("HERD_PG", "")
	path := writeConfig(t, `{
		"server": {"port": ${HERD_PORT:3210}, "log_level": "${HERD_LOG:debug}"},
		"speech": {"enabled": true},
		"world": {"spawn": ["applejack", "rarity"]},
		"database": {"postgres": {"dsn": "${HERD_PG:}"}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, []string{"applejack", "rarity"}, cfg.World.Spawn)
	assert.Empty(t, cfg.Database.Postgres.DSN)
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, 3210, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 40*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 1.0, cfg.World.Speed)
	assert.Equal(t, ScreenConfig{Width: 1280, Height: 800}, cfg.World.Screen)
	assert.Equal(t, 2*time.Second, cfg.SpeechDuration())
	assert.Zero(t, cfg.AutosaveInterval())
	assert.Equal(t, "species", cfg.Species.Dir)
	assert.Equal(t, "herd:", cfg.Gateway.Redis.Prefix)
	assert.Equal(t, "migrations", cfg.Database.Postgres.Migrations)
	assert.False(t, cfg.Speech.Enabled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, `{"server": `))
	assert.ErrorContains(t, err, "parse config")

	for _, body := range []string{
		`{"server": {"port": 70000}}`,
		`{"world": {"speed": -1}}`,
		`{"speech": {"duration_ms": -5}}`,
		`{"gateway": {"redis": {"enabled": true}}}`,
	} {
		_, err = Load(writeConfig(t, body))
		assert.ErrorContains(t, err, "validate config", body)
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.World.Spawn)
	assert.Equal(t, "species", cfg.Species.Dir)
}
