package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"probe-go/internal/probe"
)

// run executes a fresh command tree against the tutorial data.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PROBE_CONFIDENCE", "")
	t.Setenv("PROBE_HOURS_PER_MONTH", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	base := []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--data", "testdata/datos_tutorial.csv"}
	cmd.SetArgs(append(append([]string{args[0]}, base...), args[1:]...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribeCommand(t *testing.T) {
	out, err := run(t, "describe", "--json")
	require.NoError(t, err)

	var desc probe.Description
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, 7, desc.Effort.Count)
	assert.InDelta(t, 4000, desc.Size.Mean, 1e-9)
}

func TestFitCommand(t *testing.T) {
	out, err := run(t, "fit")
	require.NoError(t, err)
	assert.Contains(t, out, "r  = 0.99891")
	assert.Contains(t, out, "b0 = 2.86 (intercept)")
	assert.Contains(t, out, "b1 = 0.050714 (slope)")
}

func TestEstimateCommand(t *testing.T) {
	out, err := run(t, "estimate", "--size", "289700")
	require.NoError(t, err)
	assert.Contains(t, out, "14694.79 hours")
	assert.Contains(t, out, "104.96 person-months")
	assert.Contains(t, out, "between 13916.55 and 15473.02")
}

func TestEstimateCommand_InvalidConfidence(t *testing.T) {
	_, err := run(t, "estimate", "--size", "3500", "--confidence", "1.5")
	require.ErrorIs(t, err, probe.ErrInvalidParameter)
}

func TestEstimateCommand_FlagsDoNotLeak(t *testing.T) {
	out, err := run(t, "estimate", "--size", "3500", "--confidence", "0.99", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"confidence": 0.99`)

	out, err = run(t, "estimate", "--size", "3500")
	require.NoError(t, err)
	assert.Contains(t, out, "With 95% confidence")
}
