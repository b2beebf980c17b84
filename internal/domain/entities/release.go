package entities

// Release represents an upstream release as reported by the release host
type Release struct {
	ID          int64
	TagName     string
	Name        string
	Draft       bool
	Prerelease  bool
	PublishedAt string
	Assets      []Asset
}

// Asset represents a downloadable file attached to a release
type Asset struct {
	ID                 int64
	Name               string
	Size               int64
	ContentType        string
	BrowserDownloadURL string
}
