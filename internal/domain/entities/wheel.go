package entities

import (
	"fmt"
	"strings"
)

// WheelTagPrefix is the interpreter/ABI prefix shared by every wheel the
// pipeline produces. The packaged executables are native binaries, so the
// interpreter and ABI parts of the compatibility tag are wildcards.
const WheelTagPrefix = "py2.py3-none-"

// PackageLayout describes one wheel for a (version, platform) pair: its
// naming and the member paths the package format mandates
type PackageLayout struct {
	Name        string // package name with dashes, e.g. "buf-exe"
	Version     string // normalized version, e.g. "1.28.1" or "1.28.1.dev20240101120000"
	PlatformTag string // full compatibility tag, e.g. "py2.py3-none-win_amd64"
	Executable  string // executable name without the Windows suffix
}

// DistName returns the package name in wheel file-name form
func (l PackageLayout) DistName() string {
	return strings.ReplaceAll(l.Name, "-", "_")
}

// FileName returns the wheel file name for this layout
func (l PackageLayout) FileName() string {
	return fmt.Sprintf("%s-%s-%s.whl", l.DistName(), l.Version, l.PlatformTag)
}

// DistInfoDir returns the metadata directory member prefix
func (l PackageLayout) DistInfoDir() string {
	return fmt.Sprintf("%s-%s.dist-info", l.DistName(), l.Version)
}

// ScriptPath returns the member path of the packaged executable
func (l PackageLayout) ScriptPath() string {
	return fmt.Sprintf("%s-%s.data/scripts/%s", l.DistName(), l.Version, l.ExecutableName())
}

// ExecutableName returns the executable file name, with the platform suffix
// applied on Windows targets
func (l PackageLayout) ExecutableName() string {
	if l.IsWindows() {
		return l.Executable + ".exe"
	}
	return l.Executable
}

// IsWindows reports whether this layout targets a Windows platform
func (l PackageLayout) IsWindows() bool {
	return strings.HasPrefix(l.PlatformTag, WheelTagPrefix+"win")
}
