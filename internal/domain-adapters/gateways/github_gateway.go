package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
)

const (
	// Max retries for transient errors
	maxRetries = 3
	// Initial backoff duration
	initialBackoff = 1 * time.Second
	// Max backoff duration
	maxBackoff = 32 * time.Second

	apiVersion     = "2022-11-28"
	defaultAPIBase = "https://api.github.com"
	defaultRawBase = "https://raw.githubusercontent.com"
)

// HTTPGitHubGateway implements ReleaseHost against the GitHub REST API
type HTTPGitHubGateway struct {
	client    *http.Client
	token     string
	userAgent string
	apiBase   string
	rawBase   string
}

// NewHTTPGitHubGateway creates a new GitHub gateway with HTTP client.
// The token is optional: public repositories are readable without one,
// only at a lower rate limit.
func NewHTTPGitHubGateway(token string) *HTTPGitHubGateway {
	return &HTTPGitHubGateway{
		client: &http.Client{
			Timeout: 5 * time.Minute, // Increased for large asset downloads
		},
		token:     token,
		userAgent: "redist/1.0",
		apiBase:   defaultAPIBase,
		rawBase:   defaultRawBase,
	}
}

// WithBaseURLs overrides the API and raw-content endpoints. Tests point
// both at a local httptest server.
func (g *HTTPGitHubGateway) WithBaseURLs(apiBase, rawBase string) *HTTPGitHubGateway {
	g.apiBase = strings.TrimSuffix(apiBase, "/")
	g.rawBase = strings.TrimSuffix(rawBase, "/")
	return g
}

// checkRateLimit checks GitHub API rate limit headers and returns error if exhausted
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil // No rate limit header, continue
	}

	remainingInt, err := strconv.Atoi(remaining)
	if err != nil {
		return nil // Invalid header, ignore
	}

	// If exhausted, return error immediately (don't wait in tests/CI)
	if remainingInt == 0 {
		resetTime := resp.Header.Get("X-RateLimit-Reset")
		if resetTime != "" {
			if resetUnix, err := strconv.ParseInt(resetTime, 10, 64); err == nil {
				resetAt := time.Unix(resetUnix, 0)
				return fmt.Errorf("GitHub API rate limit exceeded (0 remaining), resets at %s", resetAt.Format(time.RFC3339))
			}
		}
		return fmt.Errorf("GitHub API rate limit exceeded (0 remaining)")
	}

	// Warn if getting low
	if remainingInt <= 10 {
		// Note: This is adapter layer, direct logging is acceptable here
		// In production, consider injecting logger interface
		fmt.Fprintf(os.Stderr, "⚠️  GitHub API rate limit low: %d remaining\n", remainingInt)
	}

	return nil
}

// isRetryableError checks if an HTTP status code is retryable
func isRetryableError(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden, // 403 - rate limit
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// calculateBackoff returns the backoff duration for a retry attempt
func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// doWithRetry executes an HTTP request with exponential backoff retry.
// All requests issued by this gateway are GETs without a body, so the
// same request can be re-sent as is.
func (g *HTTPGitHubGateway) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(calculateBackoff(attempt - 1)):
			}
		}

		resp, err = g.client.Do(req)
		if err != nil {
			// Context cancellation is not retryable
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, err
			}
			// Network errors are retryable
			if attempt < maxRetries {
				continue
			}
			return nil, err
		}

		// Check rate limit
		if rateLimitErr := checkRateLimit(resp); rateLimitErr != nil {
			//nolint:errcheck,gosec // G104: Best effort close on rate limit error
			resp.Body.Close()
			return nil, rateLimitErr
		}

		// Success or non-retryable error
		if !isRetryableError(resp.StatusCode) {
			return resp, nil
		}

		// Retryable error - close body and retry
		//nolint:errcheck,gosec // G104: Best effort close before retry
		resp.Body.Close()

		if attempt < maxRetries {
			continue
		}

		// Max retries reached
		return resp, nil
	}

	return resp, err
}

// setHeaders applies the standard GitHub API headers to a request
func (g *HTTPGitHubGateway) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", g.userAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}

// githubRelease represents the GitHub API release format
type githubRelease struct {
	ID          int64         `json:"id,omitempty"`
	TagName     string        `json:"tag_name"`
	Name        string        `json:"name"`
	Draft       bool          `json:"draft"`
	Prerelease  bool          `json:"prerelease"`
	PublishedAt string        `json:"published_at,omitempty"`
	Assets      []githubAsset `json:"assets,omitempty"`
}

// githubAsset represents a GitHub release asset
type githubAsset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	ContentType        string `json:"content_type"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func toRelease(r *githubRelease) *entities.Release {
	rel := &entities.Release{
		ID:          r.ID,
		TagName:     r.TagName,
		Name:        r.Name,
		Draft:       r.Draft,
		Prerelease:  r.Prerelease,
		PublishedAt: r.PublishedAt,
		Assets:      make([]entities.Asset, len(r.Assets)),
	}
	for i, a := range r.Assets {
		rel.Assets[i] = entities.Asset{
			ID:                 a.ID,
			Name:               a.Name,
			Size:               a.Size,
			ContentType:        a.ContentType,
			BrowserDownloadURL: a.BrowserDownloadURL,
		}
	}
	return rel
}

// GetRelease retrieves a release by tag name
func (g *HTTPGitHubGateway) GetRelease(ctx context.Context, repo entities.RemoteRepo, tag string) (*entities.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/tags/%s", g.apiBase, repo.Slug(), tag)
	return g.getRelease(ctx, url, tag)
}

// GetLatestRelease retrieves the latest published release
func (g *HTTPGitHubGateway) GetLatestRelease(ctx context.Context, repo entities.RemoteRepo) (*entities.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiBase, repo.Slug())
	return g.getRelease(ctx, url, "latest")
}

func (g *HTTPGitHubGateway) getRelease(ctx context.Context, url, ref string) (*entities.Release, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.doWithRetry(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", gateways.ErrReleaseNotFound, ref)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("HTTP %d: failed to read error response", resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return toRelease(&result), nil
}

// ListReleases lists all published releases, following pagination.
// Drafts and prereleases are filtered out.
func (g *HTTPGitHubGateway) ListReleases(ctx context.Context, repo entities.RemoteRepo) ([]*entities.Release, error) {
	next := fmt.Sprintf("%s/repos/%s/releases?per_page=100", g.apiBase, repo.Slug())

	var releases []*entities.Release
	for next != "" {
		page, nextURL, err := g.listReleasePage(ctx, next)
		if err != nil {
			return nil, err
		}
		releases = append(releases, page...)
		next = nextURL
	}

	return releases, nil
}

func (g *HTTPGitHubGateway) listReleasePage(ctx context.Context, pageURL string) ([]*entities.Release, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.doWithRetry(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list releases: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("failed to list releases: status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiReleases []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&apiReleases); err != nil {
		return nil, "", fmt.Errorf("failed to decode releases: %w", err)
	}

	page := make([]*entities.Release, 0, len(apiReleases))
	for i := range apiReleases {
		r := &apiReleases[i]
		if r.Draft || r.Prerelease {
			continue
		}
		page = append(page, toRelease(r))
	}

	return page, nextPageURL(resp.Header.Get("Link")), nil
}

// nextPageURL extracts the rel="next" target from a Link header
func nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		seg := strings.Split(part, ";")
		if len(seg) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(seg[0]), "<>")
		for _, param := range seg[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

// DownloadAsset streams a release asset into w
func (g *HTTPGitHubGateway) DownloadAsset(ctx context.Context, asset *entities.Asset, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, "GET", asset.BrowserDownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := g.doWithRetry(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", asset.Name, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", asset.Name, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to download %s: %w", asset.Name, err)
	}

	return nil
}

// DownloadRawFile streams a repository file at the given ref into w
func (g *HTTPGitHubGateway) DownloadRawFile(ctx context.Context, repo entities.RemoteRepo, ref, path string, w io.Writer) error {
	url := fmt.Sprintf("%s/%s/%s/%s", g.rawBase, repo.Slug(), ref, path)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.doWithRetry(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s@%s: %w", path, ref, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s@%s: status %d", path, ref, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to fetch %s@%s: %w", path, ref, err)
	}

	return nil
}
