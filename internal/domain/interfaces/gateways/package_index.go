package gateways

import "context"

// PackageIndex defines the upload operation against a package index
type PackageIndex interface {
	// UploadWheel uploads one wheel file to the index. The gateway reads the
	// package metadata out of the wheel itself.
	UploadWheel(ctx context.Context, wheelPath string) error
}
