package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "engine", "")
	l.Debugw("run", map[string]any{"rule": "novice", "sites": 5})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "novice", line["rule"])
	assert.EqualValues(t, 5, line["sites"])
	assert.Equal(t, "run", line["message"])
}

func TestZerologLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "engine", "warn")
	l.Infof("hidden")
	l.Warnf("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}
