package gateways

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
	"github.com/ochairo/redist/internal/domain/services"
)

const (
	// ManifestFileName is the per-tag fetch manifest written into the cache
	ManifestFileName = "manifest.yaml"
	// LicenseFileName is the cached license, regardless of its upstream path
	LicenseFileName = "LICENSE"

	cacheDirMode  = 0o750
	cacheFileMode = 0o644
)

// SignatureVerifier checks a detached signature over in-memory data
type SignatureVerifier interface {
	VerifyDetached(data, sig []byte) error
}

// ManifestStore persists the per-tag fetch manifest
type ManifestStore interface {
	SaveManifest(path string, manifest *entities.FetchManifest) error
	LoadManifest(path string) (*entities.FetchManifest, error)
}

// Downloader fetches release assets into the local cache and verifies them
// against the upstream checksum manifest
type Downloader struct {
	host      gateways.ReleaseHost
	sums      *checksumVerifier
	sig       SignatureVerifier
	manifests ManifestStore
	logger    interfaces.Logger
}

// NewDownloader creates a new downloader. sig may be nil when signature
// verification is not configured.
func NewDownloader(host gateways.ReleaseHost, sig SignatureVerifier, manifests ManifestStore, logger interfaces.Logger) *Downloader {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Downloader{
		host:      host,
		sums:      NewChecksumVerifier(),
		sig:       sig,
		manifests: manifests,
		logger:    logger,
	}
}

// FetchResult describes what a fetch produced
type FetchResult struct {
	Release    *entities.Release
	Manifest   *entities.FetchManifest
	Artifacts  []*entities.Artifact
	CacheDir   string
	Downloaded int
	Reused     int
}

// Fetch resolves a release, downloads its checksum manifest, license and
// executable assets into cacheRoot/<exe>/<tag>/, and records a fetch
// manifest. Cached assets whose checksum still matches are reused, so a
// repeat fetch of the same tag performs no asset downloads and no writes.
func (d *Downloader) Fetch(ctx context.Context, project *entities.Project, tag, cacheRoot string) (*FetchResult, error) {
	release, err := d.resolveRelease(ctx, project, tag)
	if err != nil {
		return nil, err
	}

	cacheDir := filepath.Join(cacheRoot, project.Executable.Name, release.TagName)
	if err := os.MkdirAll(cacheDir, cacheDirMode); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	checksums, err := d.fetchChecksumManifest(ctx, project, release, cacheDir)
	if err != nil {
		return nil, err
	}

	if err := d.fetchLicense(ctx, project, release, cacheDir); err != nil {
		return nil, err
	}

	pattern, err := regexp.Compile(project.Executable.AssetPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid asset pattern %q: %w", project.Executable.AssetPattern, err)
	}

	var artifacts []*entities.Artifact
	downloaded, reused := 0, 0
	for i := range release.Assets {
		asset := &release.Assets[i]
		if asset.Name == project.Security.ChecksumAsset || asset.Name == project.Security.SignatureAsset {
			continue
		}
		if !pattern.MatchString(asset.Name) {
			continue
		}

		expected, ok := checksums[asset.Name]
		if !ok {
			return nil, fmt.Errorf("no entry for %s in checksum manifest %s", asset.Name, project.Security.ChecksumAsset)
		}

		path := filepath.Join(cacheDir, asset.Name)
		hit, err := d.cachedAssetValid(path, expected)
		if err != nil {
			return nil, err
		}
		if hit {
			reused++
		} else {
			if err := d.downloadAndVerify(ctx, asset, path, expected); err != nil {
				return nil, err
			}
			downloaded++
		}

		platform := ""
		if target, ok := services.MapAssetPlatform(project, asset.Name); ok {
			platform = target.WheelTag
		}
		artifacts = append(artifacts, &entities.Artifact{
			Name:     asset.Name,
			Tag:      release.TagName,
			Platform: platform,
			Path:     path,
			Checksum: expected,
		})
	}

	if len(artifacts) == 0 {
		return nil, fmt.Errorf("release %s has no assets matching %q", release.TagName, project.Executable.AssetPattern)
	}

	manifest := &entities.FetchManifest{
		Tag:       release.TagName,
		Source:    project.Upstream.Slug(),
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
		Checksums: make(map[string]string, len(artifacts)),
	}
	for _, a := range artifacts {
		manifest.Checksums[a.Name] = a.Checksum
	}

	manifestPath := filepath.Join(cacheDir, ManifestFileName)
	if err := d.saveManifestIfChanged(manifestPath, manifest); err != nil {
		return nil, err
	}

	d.logger.Info("fetch complete",
		interfaces.F("tag", release.TagName),
		interfaces.F("downloaded", downloaded),
		interfaces.F("reused", reused))

	return &FetchResult{
		Release:    release,
		Manifest:   manifest,
		Artifacts:  artifacts,
		CacheDir:   cacheDir,
		Downloaded: downloaded,
		Reused:     reused,
	}, nil
}

// resolveRelease looks up the release for tag, or the latest published one
func (d *Downloader) resolveRelease(ctx context.Context, project *entities.Project, tag string) (*entities.Release, error) {
	if tag == "" || tag == "latest" {
		release, err := d.host.GetLatestRelease(ctx, project.Upstream)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve latest release of %s: %w", project.Upstream.Slug(), err)
		}
		d.logger.Debug("resolved latest release", interfaces.F("tag", release.TagName))
		return release, nil
	}

	release, err := d.host.GetRelease(ctx, project.Upstream, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve release %s of %s: %w", tag, project.Upstream.Slug(), err)
	}
	return release, nil
}

// fetchChecksumManifest downloads the upstream checksum manifest, verifies
// its detached signature when configured, parses it and caches it
func (d *Downloader) fetchChecksumManifest(ctx context.Context, project *entities.Project, release *entities.Release, cacheDir string) (map[string]string, error) {
	asset := findAsset(release, project.Security.ChecksumAsset)
	if asset == nil {
		return nil, fmt.Errorf("release %s has no checksum manifest %s", release.TagName, project.Security.ChecksumAsset)
	}

	var buf bytes.Buffer
	if err := d.host.DownloadAsset(ctx, asset, &buf); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if project.Security.VerifySignature {
		if err := d.verifyManifestSignature(ctx, project, release, data, cacheDir); err != nil {
			return nil, err
		}
	}

	checksums, err := services.ParseChecksumManifest(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid checksum manifest %s: %w", asset.Name, err)
	}

	if err := writeFileIfChanged(filepath.Join(cacheDir, asset.Name), data); err != nil {
		return nil, err
	}

	return checksums, nil
}

// verifyManifestSignature downloads the detached signature asset and checks
// it over the checksum manifest bytes
func (d *Downloader) verifyManifestSignature(ctx context.Context, project *entities.Project, release *entities.Release, manifestData []byte, cacheDir string) error {
	if d.sig == nil {
		return fmt.Errorf("signature verification enabled but no verifier configured")
	}
	if project.Security.SignatureAsset == "" {
		return fmt.Errorf("signature verification enabled but no signature asset configured")
	}

	asset := findAsset(release, project.Security.SignatureAsset)
	if asset == nil {
		return fmt.Errorf("release %s has no signature asset %s", release.TagName, project.Security.SignatureAsset)
	}

	var buf bytes.Buffer
	if err := d.host.DownloadAsset(ctx, asset, &buf); err != nil {
		return err
	}

	if err := d.sig.VerifyDetached(manifestData, buf.Bytes()); err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", project.Security.ChecksumAsset, err)
	}
	d.logger.Info("checksum manifest signature verified", interfaces.F("signature", asset.Name))

	return writeFileIfChanged(filepath.Join(cacheDir, asset.Name), buf.Bytes())
}

// fetchLicense caches the upstream license file for the release tag.
// Content at a tag is immutable, so an existing cache entry is reused.
func (d *Downloader) fetchLicense(ctx context.Context, project *entities.Project, release *entities.Release, cacheDir string) error {
	path := filepath.Join(cacheDir, LicenseFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := d.host.DownloadRawFile(ctx, project.Upstream, release.TagName, project.Metadata.LicensePath, &buf); err != nil {
		return fmt.Errorf("failed to fetch license %s: %w", project.Metadata.LicensePath, err)
	}
	if buf.Len() == 0 {
		return fmt.Errorf("license file %s at %s is empty", project.Metadata.LicensePath, release.TagName)
	}

	if err := os.WriteFile(path, buf.Bytes(), cacheFileMode); err != nil {
		return fmt.Errorf("failed to write license: %w", err)
	}
	return nil
}

// cachedAssetValid reports whether path exists with the expected checksum.
// A corrupted cache entry is removed so the caller re-downloads it.
func (d *Downloader) cachedAssetValid(path, expected string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat cached asset: %w", err)
	}

	actual, err := d.sums.CalculateChecksum(path)
	if err != nil {
		return false, err
	}
	if actual != expected {
		if err := os.Remove(path); err != nil {
			return false, fmt.Errorf("failed to remove corrupted cache entry %s: %w", path, err)
		}
		d.logger.Warn("cached asset failed checksum, re-downloading", interfaces.F("asset", filepath.Base(path)))
		return false, nil
	}

	return true, nil
}

// downloadAndVerify streams an asset to path, hashing as it goes. On any
// failure the partial or mismatching file is removed before returning.
func (d *Downloader) downloadAndVerify(ctx context.Context, asset *entities.Asset, path, expected string) error {
	//nolint:gosec // G304: path is derived from the workdir layout
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	h := sha256.New()
	err = d.host.DownloadAsset(ctx, asset, io.MultiWriter(out, h))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to download %s: %w", asset.Name, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expected {
		_ = os.Remove(path)
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", asset.Name, expected, actual)
	}

	d.logger.Info("downloaded", interfaces.F("asset", asset.Name), interfaces.F("sha256", actual))
	return nil
}

// saveManifestIfChanged skips the write when an equivalent manifest is
// already on disk, keeping repeat fetches write-free
func (d *Downloader) saveManifestIfChanged(path string, manifest *entities.FetchManifest) error {
	if existing, err := d.manifests.LoadManifest(path); err == nil {
		if existing.Tag == manifest.Tag && maps.Equal(existing.Checksums, manifest.Checksums) {
			return nil
		}
	}
	return d.manifests.SaveManifest(path, manifest)
}

func findAsset(release *entities.Release, name string) *entities.Asset {
	if name == "" {
		return nil
	}
	for i := range release.Assets {
		if release.Assets[i].Name == name {
			return &release.Assets[i]
		}
	}
	return nil
}

// writeFileIfChanged writes data to path unless identical bytes are already
// cached there
func writeFileIfChanged(path string, data []byte) error {
	//nolint:gosec // G304: path is derived from the workdir layout
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err := os.WriteFile(path, data, cacheFileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
