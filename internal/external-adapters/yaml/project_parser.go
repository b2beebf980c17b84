// Package yaml provides YAML-based project configuration and state files.
package yaml

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ochairo/redist/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the configuration omits optional fields
const (
	defaultDescriptionPath = "README.md"
	defaultLicensePath     = "LICENSE"
	defaultChecksumAsset   = "sha256.txt"
	defaultUploadURL       = "https://test.pypi.org/legacy/"
	defaultRepository      = "testpypi"
	defaultExecTimeout     = 30
)

// yamlProject represents the raw YAML structure
type yamlProject struct {
	Name        string         `yaml:"name"`
	Summary     string         `yaml:"summary"`
	Description string         `yaml:"description"`
	Executable  yamlExecutable `yaml:"executable"`
	Upstream    yamlRemote     `yaml:"upstream"`
	Origin      yamlRemote     `yaml:"origin"`
	Metadata    yamlMetadata   `yaml:"metadata"`
	Platforms   []yamlPlatform `yaml:"platforms"`
	Security    yamlSecurity   `yaml:"security"`
	Index       yamlIndex      `yaml:"index"`
}

type yamlExecutable struct {
	Name           string   `yaml:"name"`
	VersionArgs    []string `yaml:"version_args"`
	AssetPattern   string   `yaml:"asset_pattern"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type yamlRemote struct {
	Repo string `yaml:"repo"` // owner/repo
}

type yamlMetadata struct {
	Author          string   `yaml:"author"`
	Maintainer      string   `yaml:"maintainer"`
	MaintainerEmail string   `yaml:"maintainer_email"`
	HomePage        string   `yaml:"home_page"`
	License         string   `yaml:"license"`
	LicensePath     string   `yaml:"license_path"`
	Classifiers     []string `yaml:"classifiers"`
	ProjectURLs     []string `yaml:"project_urls"`
}

type yamlPlatform struct {
	AssetSuffix string `yaml:"asset_suffix"`
	OS          string `yaml:"os"`
	Arch        string `yaml:"arch"`
	WheelTag    string `yaml:"wheel_tag"`
}

type yamlSecurity struct {
	ChecksumAsset   string   `yaml:"checksum_asset"`
	SignatureAsset  string   `yaml:"signature_asset"`
	VerifySignature bool     `yaml:"verify_signature"`
	KeyFiles        []string `yaml:"key_files"`
	KeyURLs         []string `yaml:"key_urls"`
}

type yamlIndex struct {
	UploadURL  string `yaml:"upload_url"`
	Repository string `yaml:"repository"`
}

// ProjectParser parses YAML project configuration
type ProjectParser struct{}

// NewProjectParser creates a new YAML parser
func NewProjectParser() *ProjectParser {
	return &ProjectParser{}
}

// Parse parses YAML bytes into a validated Project entity with defaults
// applied
func (p *ProjectParser) Parse(data []byte) (*entities.Project, error) {
	var yamlDef yamlProject
	if err := yaml.Unmarshal(data, &yamlDef); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if yamlDef.Name == "" {
		return nil, fmt.Errorf("project must have a name")
	}
	if yamlDef.Executable.Name == "" {
		return nil, fmt.Errorf("project %s must declare executable.name", yamlDef.Name)
	}
	if len(yamlDef.Platforms) == 0 {
		return nil, fmt.Errorf("project %s must declare at least one platform", yamlDef.Name)
	}

	upstream, err := parseRemote(yamlDef.Upstream, "upstream")
	if err != nil {
		return nil, err
	}
	origin, err := parseRemote(yamlDef.Origin, "origin")
	if err != nil {
		return nil, err
	}

	executable, err := convertExecutable(yamlDef.Executable)
	if err != nil {
		return nil, err
	}

	platforms, err := convertPlatforms(yamlDef.Platforms)
	if err != nil {
		return nil, err
	}

	def := &entities.Project{
		Name:        yamlDef.Name,
		Summary:     yamlDef.Summary,
		Description: stringOr(yamlDef.Description, defaultDescriptionPath),
		Executable:  executable,
		Upstream:    upstream,
		Origin:      origin,
		Metadata:    convertMetadata(yamlDef.Metadata),
		Platforms:   platforms,
		Security:    convertSecurity(yamlDef.Security),
		Index:       convertIndex(yamlDef.Index),
	}

	return def, nil
}

func parseRemote(yr yamlRemote, field string) (entities.RemoteRepo, error) {
	if yr.Repo == "" {
		if field == "origin" {
			// The origin repo is only needed by sync; it may be omitted.
			return entities.RemoteRepo{}, nil
		}
		return entities.RemoteRepo{}, fmt.Errorf("%s.repo is required", field)
	}

	parts := strings.Split(yr.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return entities.RemoteRepo{}, fmt.Errorf("%s.repo must be owner/repo, got %q", field, yr.Repo)
	}

	return entities.RemoteRepo{Owner: parts[0], Repo: parts[1]}, nil
}

func convertExecutable(ye yamlExecutable) (entities.ExecutableConfig, error) {
	pattern := ye.AssetPattern
	if pattern == "" {
		// Executable assets are "<name>-<platform>" with an optional Windows
		// extension and no other dots.
		pattern = fmt.Sprintf(`^%s-[^.]+(\.exe)?$`, regexp.QuoteMeta(ye.Name))
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return entities.ExecutableConfig{}, fmt.Errorf("invalid executable.asset_pattern: %w", err)
	}

	args := ye.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}

	timeout := ye.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}

	return entities.ExecutableConfig{
		Name:           ye.Name,
		VersionArgs:    args,
		AssetPattern:   pattern,
		WindowsSuffix:  ".exe",
		TimeoutSeconds: timeout,
	}, nil
}

func convertMetadata(ym yamlMetadata) entities.PackageMetadata {
	return entities.PackageMetadata{
		Author:          ym.Author,
		Maintainer:      ym.Maintainer,
		MaintainerEmail: ym.MaintainerEmail,
		HomePage:        ym.HomePage,
		License:         ym.License,
		LicensePath:     stringOr(ym.LicensePath, defaultLicensePath),
		Classifiers:     ym.Classifiers,
		ProjectURLs:     ym.ProjectURLs,
	}
}

func convertPlatforms(yps []yamlPlatform) ([]entities.PlatformTarget, error) {
	platforms := make([]entities.PlatformTarget, 0, len(yps))
	seen := make(map[string]bool)
	for i, yp := range yps {
		if yp.AssetSuffix == "" || yp.OS == "" || yp.Arch == "" || yp.WheelTag == "" {
			return nil, fmt.Errorf("platform %d must declare asset_suffix, os, arch and wheel_tag", i)
		}
		if seen[yp.AssetSuffix] {
			return nil, fmt.Errorf("duplicate platform asset_suffix %q", yp.AssetSuffix)
		}
		seen[yp.AssetSuffix] = true

		platforms = append(platforms, entities.PlatformTarget{
			AssetSuffix: yp.AssetSuffix,
			OS:          yp.OS,
			Arch:        yp.Arch,
			WheelTag:    yp.WheelTag,
		})
	}

	return platforms, nil
}

func convertSecurity(ys yamlSecurity) entities.SecurityConfig {
	return entities.SecurityConfig{
		ChecksumAsset:   stringOr(ys.ChecksumAsset, defaultChecksumAsset),
		SignatureAsset:  ys.SignatureAsset,
		VerifySignature: ys.VerifySignature,
		KeyFiles:        ys.KeyFiles,
		KeyURLs:         ys.KeyURLs,
	}
}

func convertIndex(yi yamlIndex) entities.IndexConfig {
	return entities.IndexConfig{
		UploadURL:  stringOr(yi.UploadURL, defaultUploadURL),
		Repository: stringOr(yi.Repository, defaultRepository),
	}
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
