package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"storage": "memory"}`)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, []string{"general", "random", "tech", "gaming"}, cfg.Rooms)
	assert.Equal(t, "general", cfg.DefaultRoom)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 50, cfg.SearchLimit)
	assert.Equal(t, 1000, cfg.MaxMessageLength)
}

func TestReadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"port": 9000,
		"log_level": "debug",
		"storage": "memory",
		"rooms": ["lobby", "dev"],
		"default_room": "lobby",
		"history_limit": 25,
		"max_message_length": 280
	}`)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"lobby", "dev"}, cfg.Rooms)
	assert.Equal(t, "lobby", cfg.DefaultRoom)
	assert.Equal(t, 25, cfg.HistoryLimit)
	assert.Equal(t, 280, cfg.MaxMessageLength)
}

func TestReadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"redis storage without url", `{"storage": "redis"}`},
		{"postgres storage without url", `{"storage": "postgres"}`},
		{"unknown backend", `{"storage": "cassandra"}`},
		{"default room not in list", `{"storage": "memory", "rooms": ["dev"], "default_room": "lobby"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
