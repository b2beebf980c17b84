package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// versionPattern is the normalized version shape accepted by the pipeline:
// release segments, an optional pre-release marker, an optional dev segment.
var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*((a|b|rc)[0-9]+)?(\.dev[0-9]+)?$`)

// NormalizeVersion converts an upstream release tag into the normalized
// version used in package file names and metadata. The leading "v" is
// stripped and pre-release markers are collapsed into their canonical short
// form ("1.0.0-rc1" becomes "1.0.0rc1").
func NormalizeVersion(tag string) (string, error) {
	version := strings.ToLower(strings.TrimPrefix(tag, "v"))
	for old, canonical := range map[string]string{
		"-rc":    "rc",
		"-beta":  "b",
		"-alpha": "a",
	} {
		version = strings.ReplaceAll(version, old, canonical)
	}

	if !versionPattern.MatchString(version) {
		return "", fmt.Errorf("tag %q does not normalize to a valid version (got %q)", tag, version)
	}

	return version, nil
}

// DevSuffix returns the development-release suffix for the given commit time
func DevSuffix(commitTime time.Time) string {
	return ".dev" + commitTime.UTC().Format("20060102150405")
}

// CompareVersions compares two version strings or release tags numerically,
// segment by segment. A leading "v" is ignored so tags and normalized
// versions order the same way.
// Returns: 1 if v1 > v2, -1 if v1 < v2, 0 if equal
func CompareVersions(v1, v2 string) int {
	parts1 := strings.Split(strings.TrimPrefix(v1, "v"), ".")
	parts2 := strings.Split(strings.TrimPrefix(v2, "v"), ".")

	maxLen := len(parts1)
	if len(parts2) > maxLen {
		maxLen = len(parts2)
	}

	for i := 0; i < maxLen; i++ {
		num1 := leadingNumber(parts1, i)
		num2 := leadingNumber(parts2, i)

		if num1 > num2 {
			return 1
		} else if num1 < num2 {
			return -1
		}
	}

	return 0
}

// leadingNumber extracts the numeric prefix of part i, so segments like
// "1rc1" compare as 1
func leadingNumber(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}

	numStr := ""
	for _, ch := range parts[i] {
		if ch >= '0' && ch <= '9' {
			numStr += string(ch)
		} else {
			break
		}
	}
	if numStr == "" {
		return 0
	}

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0
	}
	return n
}
