package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := New(config.LogConfig{Level: "debug", Encoding: "json", OutputPath: path})
	require.NoError(t, err)

	Stage(log, "render").Info("job compiled")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"render"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewFallsBackOnBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := New(config.LogConfig{Level: "chatty", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestStageNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { Stage(nil, "bgm").Warn("no logger") })
}
