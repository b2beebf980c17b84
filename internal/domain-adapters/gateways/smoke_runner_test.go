package gateways

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSmokeRunner returns a runner with deterministic environment handling
// regardless of the CI variable on the machine running the tests
func testSmokeRunner() *SmokeRunner {
	runner := NewSmokeRunner(nil)
	runner.keepEnv = false
	return runner
}

func TestSmokeRunner_Run_Success(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"1.2.3\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	report, err := testSmokeRunner().Run(context.Background(), project, assemble, fetch.Manifest, nil)
	require.NoError(t, err)

	assert.Contains(t, report.Wheel, "buf_exe-1.2.3")
	assert.Equal(t, filepath.Join(report.EnvDir, "bin", "buf"), report.Path)
	assert.Equal(t, project.Executable.VersionArgs, report.Args)
	assert.Contains(t, report.Output, "1.2.3")
	assert.False(t, report.Kept)

	// The throwaway environment is gone outside CI
	_, statErr := os.Stat(report.EnvDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSmokeRunner_Run_KeepsEnvironment(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"1.2.3\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	runner := testSmokeRunner()
	runner.keepEnv = true

	report, err := runner.Run(context.Background(), project, assemble, fetch.Manifest, nil)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.RemoveAll(report.EnvDir))
	}()

	assert.True(t, report.Kept)

	installed, err := os.ReadFile(report.Path)
	require.NoError(t, err)
	assert.Equal(t, script, installed)

	info, err := os.Stat(report.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestSmokeRunner_Run_NoHostWheel(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"1.2.3\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	runner := testSmokeRunner()
	runner.goos = "plan9"
	runner.goarch = "mips"

	_, err := runner.Run(context.Background(), project, assemble, fetch.Manifest, nil)

	require.ErrorIs(t, err, ErrNoHostWheel)
	assert.Contains(t, err.Error(), "plan9/mips")
}

func TestSmokeRunner_Run_ArgsOverride(t *testing.T) {
	requireUnixStub(t)

	// Prints something the version check would reject, so a pass proves the
	// override suspends it
	script := []byte("#!/bin/sh\necho \"usage: buf\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	report, err := testSmokeRunner().Run(context.Background(), project, assemble, fetch.Manifest, []string{"--help"})
	require.NoError(t, err)

	assert.Equal(t, []string{"--help"}, report.Args)
	assert.Contains(t, report.Output, "usage: buf")
}

func TestSmokeRunner_Run_WrongVersion(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"9.9.9\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	_, err := testSmokeRunner().Run(context.Background(), project, assemble, fetch.Manifest, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not contain")
}

func TestSmokeRunner_Run_ExecutableFails(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"boom\" >&2\nexit 3\n")
	project, fetch, assemble := verifyPipeline(t, script)

	_, err := testSmokeRunner().Run(context.Background(), project, assemble, fetch.Manifest, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestSmokeRunner_Run_ChecksumMismatch(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"1.2.3\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	// Poison the recorded checksum so the verified install must refuse
	fetch.Manifest.Checksums["buf-Linux-x86_64"] = digestOf([]byte("something else"))

	_, err := testSmokeRunner().Run(context.Background(), project, assemble, fetch.Manifest, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to install")
}

func TestSmokeRunner_Run_MissingManifestEntry(t *testing.T) {
	requireUnixStub(t)

	script := []byte("#!/bin/sh\necho \"1.2.3\"\n")
	project, fetch, assemble := verifyPipeline(t, script)

	delete(fetch.Manifest.Checksums, "buf-Linux-x86_64")

	_, err := testSmokeRunner().Run(context.Background(), project, assemble, fetch.Manifest, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no checksum for")
}

func TestSmokeRunner_Lookup_SkipsNonExecutable(t *testing.T) {
	requireUnixStub(t)

	first := t.TempDir()
	second := t.TempDir()

	// Same name in both directories, only the second one is executable
	require.NoError(t, os.WriteFile(filepath.Join(first, "buf"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "buf"), []byte("data"), 0o755))

	searchPath := strings.Join([]string{first, second}, string(os.PathListSeparator))

	found, err := testSmokeRunner().lookup("buf", searchPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "buf"), found)
}

func TestSmokeRunner_Lookup_NotFound(t *testing.T) {
	_, err := testSmokeRunner().lookup("definitely-not-here", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not discoverable")
}
