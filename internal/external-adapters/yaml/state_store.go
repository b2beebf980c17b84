package yaml

import (
	"fmt"
	"os"

	"github.com/ochairo/redist/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// File permissions for persisted pipeline state
const stateFileMode = 0o644

type yamlManifest struct {
	Tag       string            `yaml:"tag"`
	Source    string            `yaml:"source"`
	FetchedAt string            `yaml:"fetched_at"`
	Checksums map[string]string `yaml:"checksums"`
}

type yamlMarker struct {
	ConfigChecksum string `yaml:"config_checksum"`
	CreatedAt      string `yaml:"created_at"`
}

// StateStore persists fetch manifests and the bootstrap marker as YAML files
type StateStore struct{}

// NewStateStore creates a new state store
func NewStateStore() *StateStore {
	return &StateStore{}
}

// SaveManifest writes a fetch manifest to path
func (s *StateStore) SaveManifest(path string, manifest *entities.FetchManifest) error {
	data, err := yaml.Marshal(yamlManifest{
		Tag:       manifest.Tag,
		Source:    manifest.Source,
		FetchedAt: manifest.FetchedAt,
		Checksums: manifest.Checksums,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fetch manifest: %w", err)
	}

	if err := os.WriteFile(path, data, stateFileMode); err != nil {
		return fmt.Errorf("failed to write fetch manifest %s: %w", path, err)
	}

	return nil
}

// LoadManifest reads a fetch manifest from path
func (s *StateStore) LoadManifest(path string) (*entities.FetchManifest, error) {
	//nolint:gosec // G304: path is derived from the workdir layout
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch manifest %s: %w", path, err)
	}

	var ym yamlManifest
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return nil, fmt.Errorf("failed to parse fetch manifest %s: %w", path, err)
	}
	if ym.Tag == "" || len(ym.Checksums) == 0 {
		return nil, fmt.Errorf("fetch manifest %s is incomplete", path)
	}

	return &entities.FetchManifest{
		Tag:       ym.Tag,
		Source:    ym.Source,
		FetchedAt: ym.FetchedAt,
		Checksums: ym.Checksums,
	}, nil
}

// SaveMarker writes the bootstrap marker to path
func (s *StateStore) SaveMarker(path string, marker *entities.BootstrapMarker) error {
	data, err := yaml.Marshal(yamlMarker{
		ConfigChecksum: marker.ConfigChecksum,
		CreatedAt:      marker.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal bootstrap marker: %w", err)
	}

	if err := os.WriteFile(path, data, stateFileMode); err != nil {
		return fmt.Errorf("failed to write bootstrap marker %s: %w", path, err)
	}

	return nil
}

// LoadMarker reads the bootstrap marker from path. Returns os.ErrNotExist
// wrapped when no marker has been written yet.
func (s *StateStore) LoadMarker(path string) (*entities.BootstrapMarker, error) {
	//nolint:gosec // G304: path is derived from the workdir layout
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap marker: %w", err)
	}

	var ym yamlMarker
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap marker %s: %w", path, err)
	}

	return &entities.BootstrapMarker{
		ConfigChecksum: ym.ConfigChecksum,
		CreatedAt:      ym.CreatedAt,
	}, nil
}
