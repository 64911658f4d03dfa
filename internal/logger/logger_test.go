package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestParseFormat defaults everything but "json" to console.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, FormatJSON, ParseFormat("JSON"))
	require.Equal(t, FormatConsole, ParseFormat("console"))
	require.Equal(t, FormatConsole, ParseFormat(""))
}

// TestContextHelpers checks that scoped fields reach the output.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(zapcore.DebugLevel, FormatJSON, &buf))
	ctx = WithName(ctx, "session")
	ctx = WithKV(ctx, "port", "COM3")

	InfoKV(ctx, "Connected", "attempt", 2)

	out := buf.String()
	require.Contains(t, out, `"logger":"session"`)
	require.Contains(t, out, `"port":"COM3"`)
	require.Contains(t, out, `"attempt":2`)
	require.Contains(t, out, `"message":"Connected"`)
}

// TestFromContext_FallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}
