package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Out: &buf})
	logger.Info().Str("clinic_id", "c1").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "c1", entry["clinic_id"])
	assert.Equal(t, "clinic-server", entry["service"])
}

func TestNew_ECS(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "ecs", Out: &buf})
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "ecs.version")
	assert.Equal(t, "info", entry["log.level"])
}

func TestNew_DevDefaultsToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Dev: true, Out: &buf})
	logger.Info().Msg("hello")

	assert.False(t, strings.HasPrefix(buf.String(), "{"), "console output should not be json: %s", buf.String())
	assert.Contains(t, buf.String(), "hello")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Level: "warn", Out: &buf})
	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
