// File: cmd/correct_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCorrect_CleanSource(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	src := writeTempFile(t, "clean.py", "x = 1\nprint(x)\n")

	var out bytes.Buffer
	err := runCorrect(context.Background(), cfg, zap.NewNop(), src, "", "", false, &out)

	require.NoError(t, err)
	assert.Equal(t, "x = 1\nprint(x)\n", out.String())
}

func TestRunCorrect_RepairsMissingColon(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	src := writeTempFile(t, "broken.py", "def main()\n    pass\n")

	var out bytes.Buffer
	err := runCorrect(context.Background(), cfg, zap.NewNop(), src, "", "", false, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "def main():")
}

func TestRunCorrect_JSONOutput(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	src := writeTempFile(t, "clean.py", "x = 1\n")

	var out bytes.Buffer
	err := runCorrect(context.Background(), cfg, zap.NewNop(), src, "", "", true, &out)
	require.NoError(t, err)

	var result schemas.CorrectionResult
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, schemas.StateClean, result.Metrics.TerminalState)
	assert.NotEmpty(t, result.Metrics.RunID)
}

func TestRunCorrect_WritesOutputFile(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	src := writeTempFile(t, "clean.py", "y = 2\n")
	dst := filepath.Join(t.TempDir(), "fixed.py")

	var out bytes.Buffer
	err := runCorrect(context.Background(), cfg, zap.NewNop(), src, "", dst, false, &out)
	require.NoError(t, err)

	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "y = 2\n", string(written))
	assert.Empty(t, out.String(), "plain output goes to the file, not stdout")
}

func TestRunCorrect_SavesAndReloadsSnapshot(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	src := writeTempFile(t, "broken.py", "def main()\n    pass\n")
	snapshot := filepath.Join(t.TempDir(), "patterns.json")

	var out bytes.Buffer
	require.NoError(t, runCorrect(context.Background(), cfg, zap.NewNop(), src, snapshot, "", false, &out))

	// The snapshot is created after the first run and must load cleanly on
	// the next one.
	_, err := os.Stat(snapshot)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runCorrect(context.Background(), cfg, zap.NewNop(), src, snapshot, "", false, &out))
	assert.Contains(t, out.String(), "def main():")
}

func TestRunCorrect_MissingSourceFile(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	var out bytes.Buffer
	err := runCorrect(context.Background(), cfg, zap.NewNop(), filepath.Join(t.TempDir(), "absent.py"), "", "", false, &out)
	assert.Error(t, err)
}

func TestRunTrends(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	src := writeTempFile(t, "broken.py", "def main()\n    pass\n")
	snapshot := filepath.Join(t.TempDir(), "patterns.json")

	var discard bytes.Buffer
	require.NoError(t, runCorrect(context.Background(), cfg, zap.NewNop(), src, snapshot, "", false, &discard))

	var out bytes.Buffer
	require.NoError(t, runTrends(cfg, zap.NewNop(), snapshot, &out))

	var report schemas.TrendReport
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &report))
	assert.GreaterOrEqual(t, report.TotalPatterns, 1)
}

func TestRunTrends_MissingSnapshot(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	var out bytes.Buffer
	err := runTrends(cfg, zap.NewNop(), filepath.Join(t.TempDir(), "absent.json"), &out)
	assert.Error(t, err)
}
