// Package entities defines core domain models and data structures.
package entities

// Artifact represents a fetched executable on disk, together with the
// checksum recorded for it at fetch time
type Artifact struct {
	Name     string // asset name as published upstream
	Tag      string
	Platform string // wheel platform tag resolved from the asset suffix
	Path     string
	Checksum string // hex-encoded SHA-256
}

// FetchManifest is the per-tag record written when a fetch completes.
// Verification later in the pipeline trusts these checksums, never the
// network.
type FetchManifest struct {
	Tag       string
	Source    string            // owner/repo the assets came from
	FetchedAt string            // RFC 3339
	Checksums map[string]string // asset name -> hex-encoded SHA-256
}

// BootstrapMarker records that the working directory has been initialized
// for a particular configuration. A checksum mismatch invalidates the
// marker and forces re-bootstrap.
type BootstrapMarker struct {
	ConfigChecksum string
	CreatedAt      string // RFC 3339
}
