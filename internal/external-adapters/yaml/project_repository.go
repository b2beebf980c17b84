package yaml

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ochairo/redist/internal/domain/entities"
)

// ProjectRepository implements repositories.ProjectRepository using a YAML
// configuration file
type ProjectRepository struct {
	configPath string
	parser     *ProjectParser
}

// NewProjectRepository creates a new YAML-based project repository
func NewProjectRepository(configPath string) *ProjectRepository {
	return &ProjectRepository{
		configPath: configPath,
		parser:     NewProjectParser(),
	}
}

// LoadProject loads and validates the project configuration
func (r *ProjectRepository) LoadProject(_ context.Context) (*entities.Project, error) {
	//nolint:gosec // G304: configPath is the operator-supplied configuration path
	data, err := os.ReadFile(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read project configuration %s: %w", r.configPath, err)
	}

	project, err := r.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid project configuration %s: %w", r.configPath, err)
	}

	digest := sha256.Sum256(data)
	project.SourcePath = r.configPath
	project.SourceChecksum = hex.EncodeToString(digest[:])

	return project, nil
}
