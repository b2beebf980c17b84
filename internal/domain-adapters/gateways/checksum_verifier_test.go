package gateways

import (
	"os"
	"path/filepath"
	"testing"
)

// TestCalculateChecksum tests SHA256 checksum calculation
func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name         string
		content      []byte
		wantChecksum string // Known SHA256 hash
	}{
		{
			name:         "empty file",
			content:      []byte(""),
			wantChecksum: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", // SHA256 of empty string
		},
		{
			name:         "simple content",
			content:      []byte("Hello, World!"),
			wantChecksum: "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			testFile := filepath.Join(tmpDir, "test.txt")

			if err := os.WriteFile(testFile, tt.content, 0600); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			verifier := NewChecksumVerifier()
			checksum, err := verifier.CalculateChecksum(testFile)
			if err != nil {
				t.Errorf("CalculateChecksum() error = %v", err)
				return
			}

			if checksum != tt.wantChecksum {
				t.Errorf("CalculateChecksum() = %v, want %v", checksum, tt.wantChecksum)
			}

			// In-memory digest must agree with the file-based one
			if got := verifier.ChecksumBytes(tt.content); got != tt.wantChecksum {
				t.Errorf("ChecksumBytes() = %v, want %v", got, tt.wantChecksum)
			}
		})
	}
}

// TestCalculateChecksumMissingFile tests the error path for unreadable files
func TestCalculateChecksumMissingFile(t *testing.T) {
	verifier := NewChecksumVerifier()

	_, err := verifier.CalculateChecksum(filepath.Join(t.TempDir(), "missing.bin"))
	if err == nil {
		t.Error("CalculateChecksum() with non-existent file should return error")
	}
}

// TestChecksumConsistency tests that checksum calculation is consistent
func TestChecksumConsistency(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")

	content := []byte("Test content for consistency check")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	verifier := NewChecksumVerifier()

	// Calculate checksum multiple times
	checksum1, err := verifier.CalculateChecksum(testFile)
	if err != nil {
		t.Fatalf("First CalculateChecksum() error = %v", err)
	}

	checksum2, err := verifier.CalculateChecksum(testFile)
	if err != nil {
		t.Fatalf("Second CalculateChecksum() error = %v", err)
	}

	if checksum1 != checksum2 {
		t.Errorf("Checksum calculation is not consistent: %v != %v", checksum1, checksum2)
	}
}

// TestLargeFileChecksum tests checksum calculation for larger files
func TestLargeFileChecksum(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "large.bin")

	// Create a 1MB file
	size := 1024 * 1024 // 1 MB
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 256)
	}

	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("Failed to create large test file: %v", err)
	}

	verifier := NewChecksumVerifier()

	checksum, err := verifier.CalculateChecksum(testFile)
	if err != nil {
		t.Errorf("CalculateChecksum() for large file error = %v", err)
		return
	}

	if len(checksum) != 64 {
		t.Errorf("CalculateChecksum() returned checksum length = %d, want 64 (SHA256 hex)", len(checksum))
	}

	if checksum != verifier.ChecksumBytes(content) {
		t.Error("file digest disagrees with the in-memory digest of the same content")
	}
}
