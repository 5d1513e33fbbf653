package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONCarriesServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "info"})

	logger.Info("access denied", "route", "/admin")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "access denied", record["msg"])
	assert.Equal(t, "odyssey-school", record["service"])
	assert.Equal(t, "staging", record["env"])
	assert.Equal(t, "/admin", record["route"])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogLevel: "warn"})
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger = newLogger(&buf, &Config{LogLevel: "loud"})
	logger.Info("fallback to info")
	assert.Contains(t, buf.String(), "fallback to info")
}
