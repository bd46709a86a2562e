package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append(args, "--params", filepath.Join(t.TempDir(), "none.yaml")))
	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScreensCommand(t *testing.T) {
	out, err := execute(t, "screens")
	require.NoError(t, err)
	assert.Contains(t, out, "SCREEN")
	assert.Contains(t, out, "accumulator")
	assert.Contains(t, out, "NDC, Date")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	claims := writeFile(t, dir, "claims.csv", "NDC,Date,Billed 340B\n111,2024-01-05,Yes\n222,2024-01-06,Yes\n")
	accum := writeFile(t, dir, "accum.csv", "NDC,Date\n111,2024-01-05\n")

	out, err := execute(t, "run", "accumulator", "-i", "claims="+claims, "-i", "accumulator="+accum)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "222,"))

	reports := t.TempDir()
	out, err = execute(t, "run", "accumulator", "-i", "claims="+claims, "-i", "accumulator="+accum, "-o", reports)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 rows")
	assert.FileExists(t, filepath.Join(reports, "accumulator_issues.csv"))
}

func TestRunCommandErrors(t *testing.T) {
	_, err := execute(t, "run", "nope")
	assert.Error(t, err)

	_, err = execute(t, "run", "accumulator", "-i", "claims")
	assert.Error(t, err)

	_, err = execute(t, "run", "accumulator", "-i", "orphans=x.csv")
	assert.Error(t, err)
}

func TestWhatIfCommand(t *testing.T) {
	out, err := execute(t, "whatif")
	require.NoError(t, err)
	assert.Contains(t, out, "76000.00")
	assert.Contains(t, out, "-71.9%")

	_, err = execute(t, "whatif", "--waste-rate", "101")
	assert.Error(t, err)
}

func TestChangeCommandStoresLog(t *testing.T) {
	lib := t.TempDir()
	out, err := execute(t, "change", "--type", "New Drug", "--go-live", "2030-01-01",
		"--cost", "100", "--savings", "300", "--store", "--library", lib)
	require.NoError(t, err)
	assert.Contains(t, out, "ROI: 200%")

	out, err = execute(t, "log", "change_evaluation_log", "--library", lib)
	require.NoError(t, err)
	assert.Contains(t, out, "New Drug")

	_, err = execute(t, "change", "--type", "New Drug", "--go-live", "soon")
	assert.Error(t, err)
}

func TestSweepCommandWithoutContracts(t *testing.T) {
	out, err := execute(t, "sweep", "--library", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "no contract file archived")
}
