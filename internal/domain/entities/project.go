package entities

// Project represents a repackaging project loaded from YAML
type Project struct {
	Name        string
	Summary     string
	Description string // path to the long-description file (README)
	Executable  ExecutableConfig
	Upstream    RemoteRepo
	Origin      RemoteRepo
	Metadata    PackageMetadata
	Platforms   []PlatformTarget
	Security    SecurityConfig
	Index       IndexConfig

	// Filled by the repository at load time, not part of the YAML document
	SourcePath     string
	SourceChecksum string // hex-encoded SHA-256 of the configuration file
}

// ExecutableConfig describes the wrapped command-line executable
type ExecutableConfig struct {
	Name           string
	VersionArgs    []string // arguments that make the executable print its version
	AssetPattern   string   // regex selecting the release assets that are executables
	WindowsSuffix  string   // appended to the executable name on Windows targets
	TimeoutSeconds int      // per-invocation timeout for running the executable
}

// RemoteRepo identifies a repository on the release host
type RemoteRepo struct {
	Owner string
	Repo  string
}

// Slug returns the owner/repo form used in URLs and messages
func (r RemoteRepo) Slug() string {
	return r.Owner + "/" + r.Repo
}

// PackageMetadata represents the static package index metadata
type PackageMetadata struct {
	Author          string
	Maintainer      string
	MaintainerEmail string
	HomePage        string
	License         string
	LicensePath     string // path of the license file inside the upstream repo
	Classifiers     []string
	ProjectURLs     []string
}

// PlatformTarget maps one upstream asset suffix to a package platform
type PlatformTarget struct {
	AssetSuffix string // e.g. "Linux-x86_64", as it appears in the asset name
	OS          string // e.g. "linux", "darwin", "windows"
	Arch        string // e.g. "amd64", "arm64"
	WheelTag    string // e.g. "manylinux_2_5_x86_64.manylinux1_x86_64"
}

// SecurityConfig represents artifact verification configuration
type SecurityConfig struct {
	ChecksumAsset   string // name of the release asset holding the checksum manifest
	SignatureAsset  string // optional detached signature over the checksum manifest
	VerifySignature bool
	KeyFiles        []string // local public key files to import at bootstrap
	KeyURLs         []string // public key URLs to import at bootstrap
}

// IndexConfig represents the destination package index
type IndexConfig struct {
	UploadURL  string // legacy upload endpoint
	Repository string // human-readable repository name for messages
}
