package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labCSV = "test,value,unit\nglucose,95,mg/dL\nldl,110,mg/dL\nhdl,55,mg/dL\n"

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func storeFlags(dir string) []string {
	return []string{
		"--db", filepath.Join(dir, "ingest.db"),
		"--storage-root", filepath.Join(dir, "blobs"),
	}
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "labs.csv", labCSV)

	out, _, err := runCLI(t, append(storeFlags(dir), "parse", path, "--category", "lab")...)
	require.NoError(t, err)

	assert.Contains(t, out, "Format: tabular")
	assert.Contains(t, out, "Rows: 3  Confidence: 100%")
	assert.Contains(t, out, "glucose")
	assert.Contains(t, out, "Mapping: lab_results (baseline, 50%)")

	_, err = os.Stat(filepath.Join(dir, "ingest.db"))
	assert.True(t, os.IsNotExist(err), "parse must not create the database")
}

func TestParseCommandLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "labs.csv", labCSV)

	out, _, err := runCLI(t, append(storeFlags(dir), "parse", path, "--category", "lab", "--limit", "1")...)
	require.NoError(t, err)

	assert.Contains(t, out, "... 2 more rows")
	assert.NotContains(t, out, "hdl")
}

func TestParseCommandUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tool.exe", "MZ\x90\x00")

	_, _, err := runCLI(t, append(storeFlags(dir), "parse", path)...)
	assert.Error(t, err)
}

func TestSubmitAndQuota(t *testing.T) {
	dir := t.TempDir()
	labs := writeFile(t, dir, "labs.csv", labCSV)
	copyOfLabs := writeFile(t, dir, "labs-copy.csv", labCSV)

	out, _, err := runCLI(t, append(storeFlags(dir), "submit", labs, "--tenant", "T1", "--category", "lab")...)
	require.NoError(t, err)
	assert.Contains(t, out, "accepted")
	assert.Contains(t, out, "lab_results, 1/3 used today")

	out, _, err = runCLI(t, append(storeFlags(dir), "submit", copyOfLabs, "--tenant", "T1", "--category", "lab")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files rejected")
	assert.Contains(t, out, "rejected")

	out, _, err = runCLI(t, append(storeFlags(dir), "quota", "--tenant", "T1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "T1")
	assert.Regexp(t, `│\s+1\s+│\s+3\s+│\s+2\s+│`, out)
}

func TestSubmitRequiresTenant(t *testing.T) {
	dir := t.TempDir()
	labs := writeFile(t, dir, "labs.csv", labCSV)

	_, _, err := runCLI(t, append(storeFlags(dir), "submit", labs)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tenant")
}

func TestUploadsCommandPages(t *testing.T) {
	dir := t.TempDir()
	labs := writeFile(t, dir, "labs.csv", labCSV)
	more := writeFile(t, dir, "labs-april.csv", "test,value,unit\ntsh,2.1,mIU/L\n")

	_, _, err := runCLI(t, append(storeFlags(dir), "submit", labs, more, "--tenant", "T1", "--category", "lab")...)
	require.NoError(t, err)

	out, _, err := runCLI(t, append(storeFlags(dir), "uploads", "--tenant", "T1", "--page-size", "1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Page 1 of 2 (2 uploads)")
	assert.Contains(t, out, "More: --page 2")

	out, _, err = runCLI(t, append(storeFlags(dir), "uploads", "--tenant", "T1", "--search", "april")...)
	require.NoError(t, err)
	assert.Contains(t, out, "labs-april.csv")
	assert.NotContains(t, out, "More:")

	out, _, err = runCLI(t, append(storeFlags(dir), "uploads", "--tenant", "T2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No uploads.")
}
