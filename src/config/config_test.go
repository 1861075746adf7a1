package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/game-review/src/engine"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"REVIEW_ENGINES_DIR", "REVIEW_ENGINE", "REVIEW_WORKERS", "REVIEW_LOG_FILE", "REVIEW_LOG_LEVEL", "REVIEW_ADDR"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, engine.Stockfish17Lite, cfg.Engine)
	assert.Equal(t, 16, cfg.Depth)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine: stockfish_16_nnue
workers: 3
depth: 20
analysis_timeout: 45s
addr: ":9000"
`), 0o644))
	t.Setenv("REVIEW_ADDR", ":9100")
	t.Setenv("REVIEW_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, engine.Stockfish16NNUE, cfg.Engine)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 20, cfg.Depth)
	assert.Equal(t, 45*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 4096, cfg.CacheSize)
}

func TestMoveTimeWithoutDepth(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte("depth: 0\nmove_time: 2s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Depth)
	assert.Equal(t, 2*time.Second, cfg.MoveTime)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("REVIEW_ENGINE", "komodo")
	t.Setenv("REVIEW_LOG_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)
	assert.Contains(t, err.Error(), "loud")

	clearEnv(t)
	t.Setenv("REVIEW_WORKERS", "many")
	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestThresholdsFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "review.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  best: 5
  excellent: 20
  good: 40
  inaccuracy: 90
  mistake: 200
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Thresholds)
	assert.Equal(t, 90, cfg.Thresholds.Inaccuracy)

	require.NoError(t, os.WriteFile(path, []byte("thresholds: {best: 50, excellent: 20, good: 40, inaccuracy: 90, mistake: 200}\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "non-decreasing")
}
