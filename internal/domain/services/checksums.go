package services

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var checksumLine = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// ParseChecksumManifest parses a sha256sum-style manifest ("<hex>  <name>"
// per line, optional "*" binary marker before the name) into a name to
// lowercase-hex map. Blank lines and comment lines are ignored.
func ParseChecksumManifest(r io.Reader) (map[string]string, error) {
	checksums := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed checksum line %d: %q", lineNo, line)
		}

		digest, name := fields[0], strings.TrimPrefix(fields[1], "*")
		if !checksumLine.MatchString(digest) {
			return nil, fmt.Errorf("invalid SHA-256 digest on line %d: %q", lineNo, digest)
		}
		if name == "" {
			return nil, fmt.Errorf("missing file name on checksum line %d", lineNo)
		}

		checksums[name] = strings.ToLower(digest)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checksum manifest: %w", err)
	}

	if len(checksums) == 0 {
		return nil, fmt.Errorf("checksum manifest contains no entries")
	}

	return checksums, nil
}
