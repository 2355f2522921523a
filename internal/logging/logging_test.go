package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "traffic-board.log")
	var console bytes.Buffer

	logger, err := New(Options{File: path, Console: &console})
	require.NoError(t, err)

	logger.Debug("hidden everywhere")
	logger.Info("file only", zap.Int("index", 3))
	logger.Warn("both outputs")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "file only", first["msg"])
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, float64(3), first["index"])

	assert.NotContains(t, console.String(), "file only")
	assert.Contains(t, console.String(), "both outputs")
}

func TestNew_Verbose(t *testing.T) {
	var console bytes.Buffer

	logger, err := New(Options{Verbose: true, Console: &console})
	require.NoError(t, err)

	logger.Debug("debug line")
	_ = logger.Sync()
	assert.Contains(t, console.String(), "debug line")
}
