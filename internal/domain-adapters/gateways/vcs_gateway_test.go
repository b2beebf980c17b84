package gateways

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// gitEnv is the environment for deterministic git invocations in tests
func gitEnv() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME=test",
		"GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test",
		"GIT_COMMITTER_EMAIL=test@example.com",
		"GIT_AUTHOR_DATE=2024-01-01T12:00:00 +0000",
		"GIT_COMMITTER_DATE=2024-01-01T12:00:00 +0000",
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_SYSTEM=/dev/null",
	)
}

// initRepo creates a git repository with one commit at a fixed time
func initRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	steps := [][]string{
		{"init", "-q"},
		{"add", "."},
		{"commit", "-q", "--allow-empty", "-m", "initial"},
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("readme\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, args := range steps {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = gitEnv()
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v (%s)", args, err, output)
		}
	}
	return dir
}

func TestVCSGateway_CommitTime(t *testing.T) {
	dir := initRepo(t)

	commitTime, err := NewVCSGateway().CommitTime(context.Background(), dir)
	if err != nil {
		t.Fatalf("CommitTime failed: %v", err)
	}

	expected := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !commitTime.Equal(expected) {
		t.Errorf("CommitTime = %v, want %v", commitTime, expected)
	}
}

func TestVCSGateway_CommitTime_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	_, err := NewVCSGateway().CommitTime(context.Background(), t.TempDir())

	if err == nil {
		t.Fatal("Expected error outside a repository, got nil")
	}
	if !strings.Contains(err.Error(), "git log") {
		t.Errorf("Expected git log in error, got: %v", err)
	}
}

func TestVCSGateway_HasUncommittedChanges(t *testing.T) {
	dir := initRepo(t)
	gateway := NewVCSGateway()

	dirty, err := gateway.HasUncommittedChanges(context.Background(), dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges failed: %v", err)
	}
	if dirty {
		t.Error("fresh commit reported as dirty")
	}

	if err := os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("wip\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	dirty, err = gateway.HasUncommittedChanges(context.Background(), dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges failed: %v", err)
	}
	if !dirty {
		t.Error("untracked file not reported as dirty")
	}
}

func TestVCSGateway_MissingBinary(t *testing.T) {
	gateway := NewVCSGateway()
	gateway.gitPath = "definitely-not-git-binary"

	_, err := gateway.CommitTime(context.Background(), t.TempDir())

	if err == nil {
		t.Fatal("Expected error for missing git binary, got nil")
	}
}
