package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/orchestrator"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\nschedule:\n  send_interval_ms: 1\n"), 0o644))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", path, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check")
	require.NoError(t, err)
	var rep orchestrator.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.NotEmpty(t, rep.CycleID)
	assert.Zero(t, rep.Due)
}

func TestLogs_Table(t *testing.T) {
	out, err := run(t, "logs", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "RECIPIENT")
}

func TestSend_Unknown(t *testing.T) {
	_, err := run(t, "send", "nope")
	assert.Error(t, err)
}
