package gateways

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// VCSGateway reads repository state through the git command line. It backs
// the development version suffix and the publish dirty-worktree guard.
type VCSGateway struct {
	gitPath string
	timeout time.Duration
}

// NewVCSGateway creates a new VCS gateway
func NewVCSGateway() *VCSGateway {
	return &VCSGateway{
		gitPath: "git",
		timeout: 30 * time.Second,
	}
}

// CommitTime returns the committer time of the newest commit in dir
func (v *VCSGateway) CommitTime(ctx context.Context, dir string) (time.Time, error) {
	output, err := v.run(ctx, dir, "log", "-1", "--format=%ct")
	if err != nil {
		return time.Time{}, err
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(output), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected git log output %q: %w", strings.TrimSpace(output), err)
	}

	return time.Unix(seconds, 0).UTC(), nil
}

// HasUncommittedChanges reports whether the worktree in dir has staged,
// unstaged or untracked changes
func (v *VCSGateway) HasUncommittedChanges(ctx context.Context, dir string) (bool, error) {
	output, err := v.run(ctx, dir, "status", "--porcelain=v1")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

func (v *VCSGateway) run(ctx context.Context, dir string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	//nolint:gosec // G204: fixed git subcommands, no configuration input in the argument list
	cmd := exec.CommandContext(runCtx, v.gitPath, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return "", fmt.Errorf("git %s failed: %w (%s)", strings.Join(args, " "), err, detail)
		}
		return "", fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}

	return stdout.String(), nil
}
