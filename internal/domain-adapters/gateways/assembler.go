package gateways

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/services"
	"github.com/ochairo/redist/internal/external-adapters/wheel"
)

// Assembler turns staged binaries into reproducible wheels under
// dist/<version>/
type Assembler struct {
	writer *wheel.Writer
	sums   *checksumVerifier
	logger interfaces.Logger
}

// NewAssembler creates a new assembler
func NewAssembler(logger interfaces.Logger) *Assembler {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Assembler{
		writer: wheel.NewWriter(),
		sums:   NewChecksumVerifier(),
		logger: logger,
	}
}

// AssembleResult describes the wheels produced for one version
type AssembleResult struct {
	Version string
	DistDir string
	Wheels  []*entities.Artifact
	Skipped int
}

// Assemble writes one wheel per staged platform. The version is the release
// tag normalized, with devSuffix appended when non-empty. Wheels that
// already exist are left untouched.
func (a *Assembler) Assemble(project *entities.Project, build *BuildResult, distRoot, devSuffix string) (*AssembleResult, error) {
	version, err := services.NormalizeVersion(build.Tag)
	if err != nil {
		return nil, err
	}
	version += devSuffix

	description, err := a.readDescription(project)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // G304: path is derived from the workdir layout
	license, err := os.ReadFile(build.LicensePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged license: %w", err)
	}

	distDir := filepath.Join(distRoot, version)
	if err := os.MkdirAll(distDir, cacheDirMode); err != nil {
		return nil, fmt.Errorf("failed to create dist directory: %w", err)
	}

	result := &AssembleResult{Version: version, DistDir: distDir}
	generator := generatorURL(project)

	for _, staged := range build.Staged {
		layout := entities.PackageLayout{
			Name:        project.Name,
			Version:     version,
			PlatformTag: staged.Name,
			Executable:  project.Executable.Name,
		}
		wheelPath := filepath.Join(distDir, layout.FileName())

		if _, err := os.Stat(wheelPath); err == nil {
			checksum, err := a.sums.CalculateChecksum(wheelPath)
			if err != nil {
				return nil, err
			}
			result.Wheels = append(result.Wheels, &entities.Artifact{
				Name:     layout.FileName(),
				Tag:      build.Tag,
				Platform: staged.Platform,
				Path:     wheelPath,
				Checksum: checksum,
			})
			result.Skipped++
			a.logger.Debug("wheel exists, skipping", interfaces.F("wheel", layout.FileName()))
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", wheelPath, err)
		}

		//nolint:gosec // G304: path is derived from the workdir layout
		executable, err := os.ReadFile(staged.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read staged binary %s: %w", staged.Name, err)
		}

		distInfo := layout.DistInfoDir()
		members := []wheel.Member{
			{Path: layout.ScriptPath(), Data: executable, Mode: wheel.ExecutableMode},
			{Path: distInfo + "/LICENSE", Data: license, Mode: wheel.RegularMode},
			{Path: distInfo + "/METADATA", Data: wheel.BuildPackageMetadata(project, layout, build.Tag, description).Encode(), Mode: wheel.RegularMode},
			{Path: distInfo + "/WHEEL", Data: wheel.BuildWheelMetadata(generator, layout).Encode(), Mode: wheel.RegularMode},
		}

		if err := a.writer.WriteWheel(wheelPath, layout, members); err != nil {
			return nil, err
		}

		checksum, err := a.sums.CalculateChecksum(wheelPath)
		if err != nil {
			return nil, err
		}

		result.Wheels = append(result.Wheels, &entities.Artifact{
			Name:     layout.FileName(),
			Tag:      build.Tag,
			Platform: staged.Platform,
			Path:     wheelPath,
			Checksum: checksum,
		})
		a.logger.Info("assembled", interfaces.F("wheel", layout.FileName()))
	}

	if len(result.Wheels) == 0 {
		return nil, fmt.Errorf("nothing staged to assemble for %s", build.Tag)
	}

	return result, nil
}

// readDescription loads the long-description file, resolved relative to the
// configuration file when the path is not absolute
func (a *Assembler) readDescription(project *entities.Project) (string, error) {
	path := project.Description
	if path == "" {
		return "", fmt.Errorf("project has no description file configured")
	}
	if !filepath.IsAbs(path) && project.SourcePath != "" {
		path = filepath.Join(filepath.Dir(project.SourcePath), path)
	}

	//nolint:gosec // G304: path comes from the project configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read description %s: %w", project.Description, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("description file %s is empty", project.Description)
	}

	return string(data), nil
}

// generatorURL names the repackaging origin in the WHEEL metadata
func generatorURL(project *entities.Project) string {
	if project.Origin.Owner != "" && project.Origin.Repo != "" {
		return "https://github.com/" + project.Origin.Slug()
	}
	return "redist"
}
