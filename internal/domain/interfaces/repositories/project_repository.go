// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/redist/internal/domain/entities"
)

// ProjectRepository defines the interface for loading the project configuration
type ProjectRepository interface {
	// LoadProject loads and validates the project configuration. The returned
	// project carries the source path and content checksum so callers can key
	// cached state on the configuration itself.
	LoadProject(ctx context.Context) (*entities.Project, error)
}
