package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestSetup_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "info", "production")

	logger.Debug("hidden")
	logger.Info("push sent", "tag", "new-event", "success", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "push sent", entry["msg"])
	assert.Equal(t, "new-event", entry["tag"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetup_DevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "debug", "development")

	logger.Debug("primed document state", "documents", 3)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "documents=3")
	assert.Same(t, logger, slog.Default())
}
