package gateways

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/services"
)

// Staged executables carry the mode they will ship with
const stagedExecMode = 0o755

// Builder stages verified cache assets into the per-tag build directory,
// renamed to their wheel platform tag
type Builder struct {
	logger interfaces.Logger
}

// NewBuilder creates a new builder
func NewBuilder(logger interfaces.Logger) *Builder {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Builder{logger: logger}
}

// BuildResult describes the staged layout for one tag
type BuildResult struct {
	Tag         string
	BuildDir    string
	LicensePath string
	Staged      []*entities.Artifact
	Skipped     []string
}

// Stage copies each fetched binary into buildRoot/<exe>/<tag>/ under its
// full wheel platform tag and carries the license along. Assets whose
// platform is not configured are reported and skipped.
func (b *Builder) Stage(project *entities.Project, fetch *FetchResult, buildRoot string) (*BuildResult, error) {
	tag := fetch.Release.TagName
	buildDir := filepath.Join(buildRoot, project.Executable.Name, tag)
	if err := os.MkdirAll(buildDir, cacheDirMode); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}

	result := &BuildResult{Tag: tag, BuildDir: buildDir}

	for _, artifact := range fetch.Artifacts {
		target, ok := services.MapAssetPlatform(project, artifact.Name)
		if !ok {
			b.logger.Warn("no platform mapping for asset, skipping", interfaces.F("asset", artifact.Name))
			result.Skipped = append(result.Skipped, artifact.Name)
			continue
		}

		stagedName := services.WheelPlatformTag(target)
		stagedPath := filepath.Join(buildDir, stagedName)
		if err := copyFile(artifact.Path, stagedPath, stagedExecMode); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", artifact.Name, err)
		}

		result.Staged = append(result.Staged, &entities.Artifact{
			Name:     stagedName,
			Tag:      tag,
			Platform: target.WheelTag,
			Path:     stagedPath,
			Checksum: artifact.Checksum,
		})
		b.logger.Debug("staged", interfaces.F("asset", artifact.Name), interfaces.F("as", stagedName))
	}

	if len(result.Staged) == 0 {
		return nil, fmt.Errorf("no configured platforms among %d fetched assets for %s", len(fetch.Artifacts), tag)
	}

	licenseDst := filepath.Join(buildDir, LicenseFileName)
	if err := copyFile(filepath.Join(fetch.CacheDir, LicenseFileName), licenseDst, cacheFileMode); err != nil {
		return nil, fmt.Errorf("failed to stage license: %w", err)
	}
	result.LicensePath = licenseDst

	b.logger.Info("build staging complete",
		interfaces.F("tag", tag),
		interfaces.F("platforms", len(result.Staged)))

	return result, nil
}

// copyFile copies src to dst with the given mode, truncating dst
func copyFile(src, dst string, mode os.FileMode) error {
	//nolint:gosec // G304: paths are derived from the workdir layout
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	//nolint:gosec // G304: paths are derived from the workdir layout
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	// A pre-existing dst keeps its old mode through O_CREATE, so enforce it
	return os.Chmod(dst, mode)
}
