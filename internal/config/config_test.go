package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "adk_local_mcp.db", cfg.DBPath)
	require.True(t, cfg.Seed)
	require.Equal(t, "mcp_server_activity.log", cfg.LogFile)
	require.Equal(t, 4<<20, cfg.MaxFrameBytes)
	require.False(t, cfg.Pipelining)
	require.Equal(t, 8, cfg.MaxInFlight)
	require.Zero(t, cfg.CallTimeout)
	require.Empty(t, cfg.RedisAddr)
	require.Equal(t, "adk-mcp:journal", cfg.JournalKey)
	require.EqualValues(t, 10000, cfg.JournalMaxLen)

	l, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, l)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ADK_MCP_DB_PATH", "/tmp/other.db")
	t.Setenv("ADK_MCP_PIPELINING", "true")
	t.Setenv("ADK_MCP_MAX_IN_FLIGHT", "32")
	t.Setenv("ADK_MCP_CALL_TIMEOUT", "1500ms")
	t.Setenv("ADK_MCP_LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/other.db", cfg.DBPath)
	require.True(t, cfg.Pipelining)
	require.Equal(t, 32, cfg.MaxInFlight)
	require.Equal(t, 1500*time.Millisecond, cfg.CallTimeout)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)

	l, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, l)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		env, value, want string
	}{
		{"ADK_MCP_MAX_IN_FLIGHT", "0", "ADK_MCP_MAX_IN_FLIGHT"},
		{"ADK_MCP_MAX_FRAME_BYTES", "-1", "ADK_MCP_MAX_FRAME_BYTES"},
		{"ADK_MCP_LOG_LEVEL", "loud", "ADK_MCP_LOG_LEVEL"},
		{"ADK_MCP_CALL_TIMEOUT", "-1s", "ADK_MCP_CALL_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.ErrorContains(t, err, tt.want)
		})
	}
}
