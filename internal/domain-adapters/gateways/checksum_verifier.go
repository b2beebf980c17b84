package gateways

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// checksumVerifier computes the SHA256 digests the pipeline compares.
// Pure Go implementation - no external sha256sum binary needed
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

// CalculateChecksum calculates the SHA256 checksum of a file
func (v *checksumVerifier) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is derived from the workdir layout
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumBytes calculates the SHA256 checksum of in-memory data
func (v *checksumVerifier) ChecksumBytes(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
