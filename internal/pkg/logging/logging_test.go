package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "json")

	l.Debug("dropped")
	l.Info("session created", "session_id", "s1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "session created", rec["msg"])
	assert.Equal(t, "s1", rec["session_id"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("geometry attached", "subscriptions", 3)

	assert.Contains(t, buf.String(), "msg=\"geometry attached\"")
	assert.Contains(t, buf.String(), "subscriptions=3")
}
