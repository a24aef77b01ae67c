package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Options{Level: "warn", Format: "JSON"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "value", record["key"])
}

func TestNew_Fallbacks(t *testing.T) {
	var buf bytes.Buffer
	options := &Options{Level: "loud", Format: "xml"}
	logger := newLogger(options, &buf)

	assert.Empty(t, options.Level)
	assert.Equal(t, "text", options.Format)
	assert.Contains(t, buf.String(), "could not parse logger format")
	assert.Contains(t, buf.String(), "could not parse logger level")

	buf.Reset()
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.log")
	logger := newLogger(&Options{File: path, Format: "text", Level: "debug"}, nil)

	logger.Debug("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"to file\"")
}

func TestNew_DevNull(t *testing.T) {
	logger := newLogger(&Options{File: os.DevNull}, nil)
	assert.False(t, logger.Enabled(t.Context(), 12))
}
