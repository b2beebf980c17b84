package gateways

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/services"
	"github.com/ochairo/redist/internal/external-adapters/wheel"
)

const defaultRunTimeout = 30 * time.Second

// PackageVerifier checks assembled wheels against the package format rules
// and the checksums recorded at fetch time. The wheel matching the host
// platform is additionally executed.
type PackageVerifier struct {
	sums   *checksumVerifier
	logger interfaces.Logger

	// Host identity, overridable in tests
	goos   string
	goarch string
}

// NewPackageVerifier creates a new package verifier
func NewPackageVerifier(logger interfaces.Logger) *PackageVerifier {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &PackageVerifier{
		sums:   NewChecksumVerifier(),
		logger: logger,
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
	}
}

// VerifyResult summarizes a verification pass
type VerifyResult struct {
	Checked     int
	HostChecked bool
	HostWheel   string
}

// Verify checks every assembled wheel: archive structure, RECORD digests,
// metadata headers, exactly one executable member at the script path, and
// the packaged binary's checksum against the fetch manifest. Failures are
// fatal and never retried.
func (v *PackageVerifier) Verify(ctx context.Context, project *entities.Project, assemble *AssembleResult, manifest *entities.FetchManifest) (*VerifyResult, error) {
	expectedVersion, err := services.NormalizeVersion(manifest.Tag)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{}
	for _, artifact := range assemble.Wheels {
		target, ok := targetForWheelTag(project, artifact.Platform)
		if !ok {
			return nil, fmt.Errorf("wheel %s has unknown platform tag %s", artifact.Name, artifact.Platform)
		}

		layout := entities.PackageLayout{
			Name:        project.Name,
			Version:     assemble.Version,
			PlatformTag: entities.WheelTagPrefix + artifact.Platform,
			Executable:  project.Executable.Name,
		}

		executable, err := v.verifyWheel(project, artifact, layout, target, manifest)
		if err != nil {
			return nil, fmt.Errorf("wheel %s: %w", artifact.Name, err)
		}
		result.Checked++

		if target.OS == v.goos && target.Arch == v.goarch {
			if err := v.runExecutable(ctx, project, layout, executable, expectedVersion); err != nil {
				return nil, fmt.Errorf("wheel %s: %w", artifact.Name, err)
			}
			result.HostChecked = true
			result.HostWheel = artifact.Name
		}

		v.logger.Info("verified", interfaces.F("wheel", artifact.Name))
	}

	if result.Checked == 0 {
		return nil, fmt.Errorf("no wheels to verify for version %s", assemble.Version)
	}
	if !result.HostChecked {
		v.logger.Warn("no wheel matches the host platform, runtime check skipped",
			interfaces.F("host", v.goos+"/"+v.goarch))
	}

	return result, nil
}

// verifyWheel runs the static checks on one wheel and returns the packaged
// executable bytes for the optional runtime check
func (v *PackageVerifier) verifyWheel(project *entities.Project, artifact *entities.Artifact, layout entities.PackageLayout, target entities.PlatformTarget, manifest *entities.FetchManifest) ([]byte, error) {
	archive, err := wheel.Open(artifact.Path)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on read-only archive
	defer archive.Close()

	distInfo := layout.DistInfoDir()
	if err := archive.VerifyRecord(distInfo); err != nil {
		return nil, err
	}

	scriptPath := layout.ScriptPath()
	executables := 0
	present := make(map[string]bool)
	for _, member := range archive.Members() {
		present[member.Path] = true
		if member.Mode.Perm()&0o111 == 0 {
			continue
		}
		executables++
		if member.Path != scriptPath {
			return nil, fmt.Errorf("unexpected executable member %s", member.Path)
		}
		if member.Mode.Perm() != 0o755 {
			return nil, fmt.Errorf("executable member mode %o, want 0755", member.Mode.Perm())
		}
	}
	if executables != 1 {
		return nil, fmt.Errorf("%d executable members, want exactly 1", executables)
	}

	for _, required := range []string{scriptPath, distInfo + "/LICENSE", distInfo + "/METADATA", distInfo + "/WHEEL", distInfo + "/RECORD"} {
		if !present[required] {
			return nil, fmt.Errorf("missing member %s", required)
		}
	}

	if err := v.verifyMetadata(project, archive, layout); err != nil {
		return nil, err
	}

	// The packaged binary must still be the bytes the upstream manifest vouched for
	executable, err := archive.ReadMember(scriptPath)
	if err != nil {
		return nil, err
	}
	assetName := assetNameFor(project, target)
	expected, ok := manifest.Checksums[assetName]
	if !ok {
		return nil, fmt.Errorf("fetch manifest has no checksum for %s", assetName)
	}
	if actual := v.sums.ChecksumBytes(executable); actual != expected {
		return nil, fmt.Errorf("packaged binary checksum mismatch: expected %s, got %s", expected, actual)
	}

	return executable, nil
}

// verifyMetadata checks the METADATA and WHEEL members
func (v *PackageVerifier) verifyMetadata(project *entities.Project, archive *wheel.Wheel, layout entities.PackageLayout) error {
	distInfo := layout.DistInfoDir()

	metadataBytes, err := archive.ReadMember(distInfo + "/METADATA")
	if err != nil {
		return err
	}
	metadata, err := wheel.ParseMetadata(metadataBytes)
	if err != nil {
		return err
	}
	for _, header := range []string{"Metadata-Version", "Name", "Version", "Summary"} {
		if metadata.Get(header) == "" {
			return fmt.Errorf("METADATA missing %s header", header)
		}
	}
	if metadata.Get("Name") != project.Name {
		return fmt.Errorf("METADATA Name = %s, want %s", metadata.Get("Name"), project.Name)
	}
	if metadata.Get("Version") != layout.Version {
		return fmt.Errorf("METADATA Version = %s, want %s", metadata.Get("Version"), layout.Version)
	}
	if strings.TrimSpace(metadata.Body) == "" {
		return fmt.Errorf("METADATA has no description body")
	}

	wheelBytes, err := archive.ReadMember(distInfo + "/WHEEL")
	if err != nil {
		return err
	}
	wheelMeta, err := wheel.ParseMetadata(wheelBytes)
	if err != nil {
		return err
	}
	if got := wheelMeta.Get("Wheel-Version"); got != wheel.WheelFormatVersion {
		return fmt.Errorf("WHEEL Wheel-Version = %s, want %s", got, wheel.WheelFormatVersion)
	}
	if got := wheelMeta.Get("Tag"); got != layout.PlatformTag {
		return fmt.Errorf("WHEEL Tag = %s, want %s", got, layout.PlatformTag)
	}

	return nil
}

// runExecutable extracts the packaged binary and checks it prints the
// expected version and exits cleanly
func (v *PackageVerifier) runExecutable(ctx context.Context, project *entities.Project, layout entities.PackageLayout, executable []byte, expectedVersion string) error {
	tmpDir, err := os.MkdirTemp("", "redist-verify-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	//nolint:errcheck // Best effort scratch cleanup
	defer os.RemoveAll(tmpDir)

	exePath := filepath.Join(tmpDir, layout.ExecutableName())
	//nolint:gosec // G306: the extracted binary must be executable
	if err := os.WriteFile(exePath, executable, 0o755); err != nil {
		return fmt.Errorf("failed to extract executable: %w", err)
	}

	timeout := defaultRunTimeout
	if project.Executable.TimeoutSeconds > 0 {
		timeout = time.Duration(project.Executable.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: runs the just-verified packaged executable
	cmd := exec.CommandContext(runCtx, exePath, project.Executable.VersionArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("packaged executable failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	if !strings.Contains(string(output), expectedVersion) {
		return fmt.Errorf("version output %q does not contain %q", strings.TrimSpace(string(output)), expectedVersion)
	}

	v.logger.Debug("runtime check passed",
		interfaces.F("executable", layout.ExecutableName()),
		interfaces.F("version", expectedVersion))
	return nil
}

// targetForWheelTag finds the configured platform carrying the given bare
// wheel tag
func targetForWheelTag(project *entities.Project, wheelTag string) (entities.PlatformTarget, bool) {
	for _, target := range project.Platforms {
		if target.WheelTag == wheelTag {
			return target, true
		}
	}
	return entities.PlatformTarget{}, false
}

// assetNameFor reconstructs the upstream asset name for a platform target
func assetNameFor(project *entities.Project, target entities.PlatformTarget) string {
	name := project.Executable.Name + "-" + target.AssetSuffix
	if target.OS == "windows" {
		name += project.Executable.WindowsSuffix
	}
	return name
}
