package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	t.Cleanup(func() { _ = SetLogLevel(original) })

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, "debug", GetLogLevel())

	require.NoError(t, SetLogLevel("TRACE"))
	assert.Equal(t, "trace", GetLogLevel())

	err := SetLogLevel("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	assert.Equal(t, "trace", GetLogLevel())
}

func TestSetOutput_WritesComponentField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	LogInfoWithFields("script", "Script loaded", map[string]any{
		"id": "google-gsi",
	})

	out := buf.String()
	assert.Contains(t, out, "Script loaded")
	assert.Contains(t, out, "component=script")
	assert.Contains(t, out, "id=google-gsi")
}

func TestLogTraceWithFields_SuppressedAboveTrace(t *testing.T) {
	original := GetLogLevel()
	t.Cleanup(func() { _ = SetLogLevel(original) })

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	require.NoError(t, SetLogLevel("info"))
	LogTraceWithFields("gis", "hidden", nil)
	assert.Empty(t, buf.String())

	require.NoError(t, SetLogLevel("trace"))
	LogTraceWithFields("gis", "shown", nil)
	assert.Contains(t, buf.String(), "level=TRACE")
}
