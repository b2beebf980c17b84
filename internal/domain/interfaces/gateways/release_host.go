// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"errors"
	"io"

	"github.com/ochairo/redist/internal/domain/entities"
)

// ErrReleaseNotFound is returned when the requested tag has no published release
var ErrReleaseNotFound = errors.New("release not found")

// ReleaseHost defines read operations against a remote release-hosting API
type ReleaseHost interface {
	// GetRelease retrieves a release by tag name
	GetRelease(ctx context.Context, repo entities.RemoteRepo, tag string) (*entities.Release, error)

	// GetLatestRelease retrieves the latest published release
	GetLatestRelease(ctx context.Context, repo entities.RemoteRepo) (*entities.Release, error)

	// ListReleases returns all published releases, following pagination
	ListReleases(ctx context.Context, repo entities.RemoteRepo) ([]*entities.Release, error)

	// DownloadAsset streams a release asset into w
	DownloadAsset(ctx context.Context, asset *entities.Asset, w io.Writer) error

	// DownloadRawFile streams a repository file at the given ref into w
	DownloadRawFile(ctx context.Context, repo entities.RemoteRepo, ref, path string, w io.Writer) error
}
