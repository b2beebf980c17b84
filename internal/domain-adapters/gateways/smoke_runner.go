package gateways

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/services"
	"github.com/ochairo/redist/internal/external-adapters/wheel"
)

// ErrNoHostWheel is returned when no assembled wheel targets the host platform
var ErrNoHostWheel = errors.New("no wheel matches the host platform")

// SmokeRunner exercises the host-platform wheel end to end: it installs the
// packaged executable into a throwaway environment, confirms the executable
// is discoverable on that environment's search path, and runs it
type SmokeRunner struct {
	logger interfaces.Logger

	// Host identity, overridable in tests
	goos   string
	goarch string

	// Keep the throwaway environment on disk after the run. Set in CI so the
	// job teardown can collect it.
	keepEnv bool
}

// NewSmokeRunner creates a new smoke runner. The environment directory is
// kept after the run when the CI environment variable is set.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewSmokeRunner(logger interfaces.Logger) *SmokeRunner {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &SmokeRunner{
		logger:  logger,
		goos:    runtime.GOOS,
		goarch:  runtime.GOARCH,
		keepEnv: os.Getenv("CI") != "",
	}
}

// SmokeReport summarizes a smoke-test run
type SmokeReport struct {
	Wheel    string   // file name of the exercised wheel
	EnvDir   string   // throwaway environment root
	Path     string   // executable path the search-path probe resolved
	Args     []string // arguments the executable ran with
	Output   string   // trimmed combined output
	Duration time.Duration
	Kept     bool // environment left on disk for collection
}

// Run smoke-tests the wheel matching the host platform. The packaged
// executable is installed into <env>/bin with a checksum-verified apply,
// probed for on the environment's search path, and invoked. With no argument
// override the version arguments are used and the output must contain the
// release version; an override only requires a zero exit.
func (s *SmokeRunner) Run(ctx context.Context, project *entities.Project, assemble *AssembleResult, manifest *entities.FetchManifest, argsOverride []string) (*SmokeReport, error) {
	start := time.Now()

	layout, target, ok := services.HostLayout(project, assemble.Version, s.goos, s.goarch)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoHostWheel, s.goos, s.goarch)
	}

	artifact, err := s.hostWheel(assemble, layout.FileName())
	if err != nil {
		return nil, err
	}

	archive, err := wheel.Open(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("wheel %s: %w", artifact.Name, err)
	}
	executable, err := archive.ReadMember(layout.ScriptPath())
	if err != nil {
		return nil, fmt.Errorf("wheel %s: %w", artifact.Name, err)
	}

	expected, ok := manifest.Checksums[assetNameFor(project, target)]
	if !ok {
		return nil, fmt.Errorf("fetch manifest has no checksum for %s", assetNameFor(project, target))
	}

	envDir, err := os.MkdirTemp("", "redist-smoke-")
	if err != nil {
		return nil, fmt.Errorf("failed to create environment directory: %w", err)
	}
	defer func() {
		if !s.keepEnv {
			//nolint:errcheck // Best-effort cleanup of the throwaway environment
			os.RemoveAll(envDir)
		}
	}()

	binDir := filepath.Join(envDir, "bin")
	if err := os.MkdirAll(binDir, workDirMode); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", binDir, err)
	}

	installed := filepath.Join(binDir, layout.ExecutableName())
	if err := s.install(installed, executable, expected); err != nil {
		return nil, fmt.Errorf("failed to install %s: %w", layout.ExecutableName(), err)
	}

	searchPath := binDir + string(os.PathListSeparator) + os.Getenv("PATH")
	found, err := s.lookup(layout.ExecutableName(), searchPath)
	if err != nil {
		return nil, err
	}
	if found != installed {
		return nil, fmt.Errorf("%s resolves to %s instead of the installed copy %s", layout.ExecutableName(), found, installed)
	}

	args := argsOverride
	checkVersion := len(args) == 0
	if checkVersion {
		args = project.Executable.VersionArgs
	}

	output, err := s.invoke(ctx, project, found, searchPath, args)
	if err != nil {
		return nil, err
	}

	if checkVersion {
		expectedVersion, verr := services.NormalizeVersion(manifest.Tag)
		if verr != nil {
			return nil, verr
		}
		if !strings.Contains(output, expectedVersion) {
			return nil, fmt.Errorf("version output %q does not contain %q", output, expectedVersion)
		}
	}

	report := &SmokeReport{
		Wheel:    artifact.Name,
		EnvDir:   envDir,
		Path:     found,
		Args:     args,
		Output:   output,
		Duration: time.Since(start),
		Kept:     s.keepEnv,
	}

	s.logger.Info("smoke test passed",
		interfaces.F("wheel", artifact.Name),
		interfaces.F("output", output))

	return report, nil
}

// hostWheel selects the assembled wheel carrying the host wheel file name
func (s *SmokeRunner) hostWheel(assemble *AssembleResult, fileName string) (*entities.Artifact, error) {
	for _, artifact := range assemble.Wheels {
		if artifact.Name == fileName {
			return artifact, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNoHostWheel, s.goos, s.goarch)
}

// install writes the executable with a checksum-verified apply
func (s *SmokeRunner) install(targetPath string, executable []byte, expectedChecksum string) error {
	checksum, err := hex.DecodeString(expectedChecksum)
	if err != nil {
		return fmt.Errorf("malformed checksum %q: %w", expectedChecksum, err)
	}

	// Apply swaps an existing target, so seed an empty one
	if _, err := os.Stat(targetPath); errors.Is(err, os.ErrNotExist) {
		//nolint:gosec // G304: targetPath is inside the environment directory we created
		seed, err := os.Create(targetPath)
		if err != nil {
			return err
		}
		if err := seed.Close(); err != nil {
			return err
		}
	}

	err = goupdate.Apply(bytes.NewReader(executable), goupdate.Options{
		TargetPath: targetPath,
		TargetMode: stagedExecMode,
		Checksum:   checksum,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return err
	}

	if old := targetPath + ".old"; fileExists(old) {
		//nolint:errcheck // Best-effort removal of the swap leftover
		os.Remove(old)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// lookup resolves an executable name on a search path the way which does
func (s *SmokeRunner) lookup(name, searchPath string) (string, error) {
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if s.goos != "windows" && info.Mode()&0o111 == 0 {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%s is not discoverable on the environment search path", name)
}

// invoke runs the installed executable with the environment's search path
func (s *SmokeRunner) invoke(ctx context.Context, project *entities.Project, exePath, searchPath string, args []string) (string, error) {
	timeout := defaultRunTimeout
	if project.Executable.TimeoutSeconds > 0 {
		timeout = time.Duration(project.Executable.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: exePath was installed by us, args come from the project configuration
	cmd := exec.CommandContext(runCtx, exePath, args...)
	// Duplicate keys resolve to the last entry, so this overrides PATH
	cmd.Env = append(os.Environ(), "PATH="+searchPath)

	output, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(output))
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w (output: %s)", filepath.Base(exePath), strings.Join(args, " "), err, trimmed)
	}
	return trimmed, nil
}
