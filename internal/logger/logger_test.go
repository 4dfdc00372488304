package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "rfc3339", cfg.TimeFormat)
	assert.NotNil(t, cfg.Output)
}

func TestJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf})

	log.Info("pool ready")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pool ready", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "warn", Format: "json", Output: buf})

	log.Debug("not seen")
	log.Info("not seen either")
	log.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "not seen")
	assert.Contains(t, out, "visible")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf})

	child := log.With().
		Str("component", "pool").
		Int("pool_size", 20).
		Dur("retry_delay", 5*time.Second).
		Logger()
	child.Info("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pool", entry["component"])
	assert.Equal(t, float64(20), entry["pool_size"])
	assert.Contains(t, entry, "retry_delay")
}

func TestErrField(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf})

	log.With().Err(errors.New("connection refused")).Logger().Error("probe failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection refused", entry["error"])
}

func TestWarnEventFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf})

	log.WarnEvent().
		Str("query", "SELECT 1").
		Dur("duration", 300*time.Millisecond).
		Msg("slow query")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "slow query", entry["message"])
	assert.Equal(t, "SELECT 1", entry["query"])
}

func TestDebugAndErrorEvents(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "json", Output: buf})

	log.DebugEvent().Str("query", "SELECT 1").Int("rows", 1).Msg("query executed")
	log.ErrorEvent().Err(errors.New("refused")).Int("attempts", 4).Msg("could not establish connection pool")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var debug, fail map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &debug))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &fail))

	assert.Equal(t, "debug", debug["level"])
	assert.Equal(t, "SELECT 1", debug["query"])
	assert.Equal(t, float64(1), debug["rows"])

	assert.Equal(t, "error", fail["level"])
	assert.Equal(t, "refused", fail["error"])
	assert.Equal(t, float64(4), fail["attempts"])
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "console", Output: buf})

	log.Info("human readable")

	// Console output is not JSON.
	out := buf.String()
	assert.Contains(t, out, "human readable")
	assert.Error(t, json.Unmarshal([]byte(out), &map[string]any{}))
}

func TestNopDiscardsEverything(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Debug("a")
		log.Infof("b %d", 1)
		log.Warn("c")
		log.Errorf("d %s", "x")
		log.WarnEvent().Str("k", "v").Msg("e")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("info"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}
