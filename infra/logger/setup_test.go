package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Cleanup(func() {
		setupMu.Lock()
		configured, outWriter, outLevel = false, nil, ""
		setupMu.Unlock()
	})
	path := filepath.Join(t.TempDir(), "app.log")
	closer := Setup(Options{Level: "info", File: path, MaxSizeMB: 1})

	l := New("setup-test")
	l.Debugf("hidden")
	l.Infof("visible %d", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"setup-test"`)
	assert.Contains(t, string(data), "visible 1")
	assert.NotContains(t, string(data), "hidden")
}
