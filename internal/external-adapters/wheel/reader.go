package wheel

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// MemberInfo describes one archive member
type MemberInfo struct {
	Path string
	Mode fs.FileMode
	Size uint64
}

// Wheel is an opened wheel archive
type Wheel struct {
	reader *zip.ReadCloser
}

// Open opens a wheel archive for reading
func Open(path string) (*Wheel, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel %s: %w", path, err)
	}
	return &Wheel{reader: reader}, nil
}

// Close releases the archive
func (w *Wheel) Close() error {
	return w.reader.Close()
}

// Members lists the archive members in archive order
func (w *Wheel) Members() []MemberInfo {
	members := make([]MemberInfo, 0, len(w.reader.File))
	for _, f := range w.reader.File {
		members = append(members, MemberInfo{
			Path: f.Name,
			Mode: f.Mode(),
			Size: f.UncompressedSize64,
		})
	}
	return members
}

// ReadMember reads one member fully into memory
func (w *Wheel) ReadMember(path string) ([]byte, error) {
	for _, f := range w.reader.File {
		if f.Name != path {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open member %s: %w", path, err)
		}
		//nolint:errcheck // Defer close on archive member
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read member %s: %w", path, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("wheel has no member %s", path)
}

// recordEntry is one parsed RECORD line
type recordEntry struct {
	digest string // urlsafe base64 SHA-256, no padding
	size   string
}

// VerifyRecord checks that RECORD lists every member with a matching SHA-256
// digest and size, and that the archive contains no member RECORD does not
// list. The RECORD member itself is exempt from the digest check.
func (w *Wheel) VerifyRecord(distInfoDir string) error {
	recordPath := distInfoDir + "/RECORD"
	recordData, err := w.ReadMember(recordPath)
	if err != nil {
		return err
	}

	entries := make(map[string]recordEntry)
	for i, line := range strings.Split(strings.TrimRight(string(recordData), "\n"), "\n") {
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return fmt.Errorf("malformed RECORD line %d: %q", i+1, line)
		}
		entries[parts[0]] = recordEntry{
			digest: strings.TrimPrefix(parts[1], "sha256="),
			size:   parts[2],
		}
	}

	for _, f := range w.reader.File {
		entry, listed := entries[f.Name]
		if !listed {
			return fmt.Errorf("member %s is not listed in RECORD", f.Name)
		}
		delete(entries, f.Name)

		if f.Name == recordPath {
			continue
		}

		data, err := w.ReadMember(f.Name)
		if err != nil {
			return err
		}
		digest := sha256.Sum256(data)
		encoded := base64.RawURLEncoding.EncodeToString(digest[:])
		if encoded != entry.digest {
			return fmt.Errorf("member %s digest mismatch: RECORD has %s, archive has %s", f.Name, entry.digest, encoded)
		}
		if fmt.Sprintf("%d", len(data)) != entry.size {
			return fmt.Errorf("member %s size mismatch: RECORD has %s, archive has %d", f.Name, entry.size, len(data))
		}
	}

	if len(entries) != 0 {
		for path := range entries {
			return fmt.Errorf("RECORD lists missing member %s", path)
		}
	}

	return nil
}
