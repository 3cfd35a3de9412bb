package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand_PrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  id: from-file\n"), 0o600))
	t.Setenv("AWAITABLE_BENCH_CALLS", "7")

	out, err := execute(t, "config", "--config", path, "--pool.workers", "3")

	require.NoError(t, err)
	assert.Contains(t, out, "id: from-file")
	assert.Contains(t, out, "workers: 3")
	assert.Contains(t, out, "calls: 7")
}

func TestRunCommand_PrintsSummary(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "bench.log")

	out, err := execute(t, "run",
		"--pool.workers", "2",
		"--bench.calls", "6",
		"--bench.work", "1ms",
		"--bench.fail_every", "3",
		"--log.file", logFile,
	)

	require.NoError(t, err)
	assert.Contains(t, out, "6 calls to (*worker).simulate")
	assert.Contains(t, out, "ok=4 failed=2 cancelled=0")

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "bench finished")
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--pool.workers", "-1")

	assert.ErrorContains(t, err, "pool.workers must be >= 0")
}
