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

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"databasePath": "/data/gateway.duckdb",
		"coversPath": "/data/covers",
		"chunksPath": "/data/chunks",
		"appSecret": "carmen",
		"publicDomain": "media.example.org",
		"publicMediaRoutes": true
	}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/gateway.duckdb", cfg.DatabasePath)
	assert.Equal(t, "/data/covers", cfg.CoversPath)
	assert.Equal(t, "/data/chunks", cfg.ChunksPath)
	assert.Equal(t, "media.example.org", cfg.PublicDomain)
	assert.True(t, cfg.PublicMediaRoutes)
	// defaults survive the file layer
	assert.Equal(t, "18080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no databasePath",
			body: `{"coversPath":"/c","chunksPath":"/k","appSecret":"s"}`,
			want: "databasePath",
		},
		{
			name: "no coversPath",
			body: `{"databasePath":"/d","chunksPath":"/k","appSecret":"s"}`,
			want: "coversPath",
		},
		{
			name: "no chunksPath",
			body: `{"databasePath":"/d","coversPath":"/c","appSecret":"s"}`,
			want: "chunksPath",
		},
		{
			name: "no appSecret",
			body: `{"databasePath":"/d","coversPath":"/c","chunksPath":"/k"}`,
			want: "appSecret",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{
		"databasePath": "/data/gateway.duckdb",
		"coversPath": "/data/covers",
		"chunksPath": "/data/chunks",
		"appSecret": "carmen",
		"port": "9000"
	}`)
	t.Setenv("GHOSTSTREAM_PORT", "9001")
	t.Setenv("GHOSTSTREAM_LOG_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "databasePath", envTransform("GHOSTSTREAM_DATABASE_PATH"))
	assert.Equal(t, "publicMediaRoutes", envTransform("GHOSTSTREAM_PUBLIC_MEDIA_ROUTES"))
	assert.Equal(t, "port", envTransform("GHOSTSTREAM_PORT"))
}
