package gateways

import (
	"bytes"
	"context"
	//nolint:gosec // G501: the legacy upload API requires an md5 digest alongside sha256
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/external-adapters/wheel"
)

// indexUsername is the fixed user name for token authentication
const indexUsername = "__token__"

// HTTPIndexGateway uploads wheels through the package index legacy upload
// API: one multipart form per file, metadata mirrored from the wheel's own
// METADATA member
type HTTPIndexGateway struct {
	client    *http.Client
	uploadURL string
	token     string
	logger    interfaces.Logger
}

// NewHTTPIndexGateway creates a new index gateway for the given upload
// endpoint. The token authenticates as the fixed token user.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewHTTPIndexGateway(uploadURL, token string, logger interfaces.Logger) *HTTPIndexGateway {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HTTPIndexGateway{
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		uploadURL: strings.TrimSuffix(uploadURL, "/") + "/",
		token:     token,
		logger:    logger,
	}
}

// UploadWheel uploads one wheel file. The form fields are read back out of
// the wheel so the index always sees exactly what was packaged.
func (g *HTTPIndexGateway) UploadWheel(ctx context.Context, wheelPath string) error {
	if g.token == "" {
		return fmt.Errorf("no index token configured")
	}
	fileName := filepath.Base(wheelPath)

	distInfo, pyVersion, err := splitWheelFileName(wheelPath)
	if err != nil {
		return err
	}

	//nolint:gosec // G304: wheelPath is derived from the workdir layout
	content, err := os.ReadFile(wheelPath)
	if err != nil {
		return fmt.Errorf("failed to read wheel %s: %w", wheelPath, err)
	}

	archive, err := wheel.Open(wheelPath)
	if err != nil {
		return fmt.Errorf("wheel %s: %w", fileName, err)
	}
	metadataBytes, err := archive.ReadMember(distInfo + "/METADATA")
	if err != nil {
		return fmt.Errorf("wheel %s: %w", fileName, err)
	}
	meta, err := wheel.ParseMetadata(metadataBytes)
	if err != nil {
		return fmt.Errorf("wheel %s: %w", fileName, err)
	}

	body, contentType, err := buildUploadForm(meta, pyVersion, fileName, content)
	if err != nil {
		return fmt.Errorf("failed to build upload form for %s: %w", fileName, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.uploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(indexUsername, g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", fileName, err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload of %s failed with status %d: %s",
			fileName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	g.logger.Info("uploaded wheel",
		interfaces.F("wheel", fileName),
		interfaces.F("status", resp.StatusCode))

	return nil
}

// splitWheelFileName derives the dist-info member prefix and the python
// version tag from a wheel file name
// (<dist>-<version>-<python>-<abi>-<platform>.whl)
func splitWheelFileName(path string) (distInfo, pyVersion string, err error) {
	base := filepath.Base(path)
	stem, ok := strings.CutSuffix(base, ".whl")
	if !ok {
		return "", "", fmt.Errorf("%s is not a wheel file", base)
	}
	parts := strings.Split(stem, "-")
	if len(parts) != 5 {
		return "", "", fmt.Errorf("unexpected wheel file name %s", base)
	}
	return parts[0] + "-" + parts[1] + ".dist-info", parts[2], nil
}

// buildUploadForm renders the legacy API multipart form for one wheel
func buildUploadForm(meta *wheel.Metadata, pyVersion, fileName string, content []byte) (*bytes.Buffer, string, error) {
	sha := sha256.Sum256(content)
	//nolint:gosec // G401: the legacy upload API requires an md5 digest alongside sha256
	md := md5.Sum(content)

	fields := []struct {
		name  string
		value string
	}{
		{":action", "file_upload"},
		{"protocol_version", "1"},
		{"metadata_version", meta.Get("Metadata-Version")},
		{"name", meta.Get("Name")},
		{"version", meta.Get("Version")},
		{"summary", meta.Get("Summary")},
		{"description_content_type", meta.Get("Description-Content-Type")},
		{"author", meta.Get("Author")},
		{"maintainer", meta.Get("Maintainer")},
		{"maintainer_email", meta.Get("Maintainer-email")},
		{"license", meta.Get("License")},
		{"home_page", meta.Get("Home-page")},
		{"download_url", meta.Get("Download-URL")},
		{"description", meta.Body},
		{"filetype", "bdist_wheel"},
		{"pyversion", pyVersion},
		{"sha256_digest", hex.EncodeToString(sha[:])},
		{"md5_digest", hex.EncodeToString(md[:])},
	}
	for _, classifier := range meta.Values("Classifier") {
		fields = append(fields, struct{ name, value string }{"classifiers", classifier})
	}
	for _, projectURL := range meta.Values("Project-URL") {
		fields = append(fields, struct{ name, value string }{"project_urls", projectURL})
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := form.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	part, err := form.CreateFormFile("content", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}

	return body, form.FormDataContentType(), nil
}
