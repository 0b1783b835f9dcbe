package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, "token", cfg.Client.CookieName)
	assert.Equal(t, "/socket.io/", cfg.Channel.Path)
	assert.Equal(t, "memory", cfg.Backend.Store)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("client:\n  base_url: https://chat.example.com\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	t.Setenv("APEX_CLIENT_AUTH_TOKEN", "secret-token")
	t.Setenv("APEX_LOGGING_FORMAT", "json")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.Client.BaseURL)
	assert.Equal(t, "secret-token", cfg.Client.AuthToken)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  store: cassandra\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestChannelConfig_URL(t *testing.T) {
	c := ChannelConfig{Path: "/socket.io/"}

	tests := []struct {
		base string
		want string
	}{
		{"https://apexai-backend.onrender.com", "wss://apexai-backend.onrender.com/socket.io/?EIO=4&transport=websocket"},
		{"http://localhost:8080/", "ws://localhost:8080/socket.io/?EIO=4&transport=websocket"},
	}

	for _, tt := range tests {
		got, err := c.URL(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := c.URL("ftp://example.com")
	assert.Error(t, err)
}
