package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
)

// Working directory layout and bookkeeping files
const (
	CacheDirName   = ".cache"
	BuildDirName   = "build"
	DistDirName    = "dist"
	KeysDirName    = "keys" // under the cache directory
	MarkerFileName = ".redist-bootstrapped.yaml"
	LockFileName   = ".redist.lock"

	workDirMode  = 0o750
	lockFileMode = 0o644
)

// KeyImporter is the key management surface of the signature verifier
type KeyImporter interface {
	ImportKeyFromFile(keyPath string) error
	DownloadKeyring(ctx context.Context, keysURL string) ([]byte, error)
	KeyringSize() int
}

// MarkerStore persists the bootstrap marker
type MarkerStore interface {
	SaveMarker(path string, marker *entities.BootstrapMarker) error
	LoadMarker(path string) (*entities.BootstrapMarker, error)
}

// Environment prepares and guards the working directory: directory layout,
// signing key imports, the bootstrap marker, and the exclusive run lock
type Environment struct {
	keys    KeyImporter
	markers MarkerStore
	logger  interfaces.Logger

	// Host process identity, overridable in tests
	processAlive func(pid int) (bool, error)
	pid          int

	lockPath string
}

// NewEnvironment creates a new environment bootstrapper
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewEnvironment(keys KeyImporter, markers MarkerStore, logger interfaces.Logger) *Environment {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Environment{
		keys:         keys,
		markers:      markers,
		logger:       logger,
		processAlive: defaultProcessAlive,
		pid:          os.Getpid(),
	}
}

// BootstrapResult summarizes an environment bootstrap
type BootstrapResult struct {
	WorkDir  string
	CacheDir string
	BuildDir string
	DistDir  string
	Keys     int  // keys in the keyring after import
	Reused   bool // marker matched, key downloads served from pinned copies
}

// Bootstrap prepares the working directory for a pipeline run: takes the run
// lock, creates the cache, build and dist directories, imports the configured
// signing keys, and writes the marker recording the configuration checksum.
// A marker matching the current configuration makes key imports prefer the
// pinned copies from earlier runs over fresh downloads.
//
// The lock is held until Release is called.
func (e *Environment) Bootstrap(ctx context.Context, project *entities.Project, workDir string) (*BootstrapResult, error) {
	if err := os.MkdirAll(workDir, workDirMode); err != nil {
		return nil, fmt.Errorf("failed to create working directory %s: %w", workDir, err)
	}
	if err := e.acquireLock(filepath.Join(workDir, LockFileName)); err != nil {
		return nil, err
	}

	result := &BootstrapResult{
		WorkDir:  workDir,
		CacheDir: filepath.Join(workDir, CacheDirName),
		BuildDir: filepath.Join(workDir, BuildDirName),
		DistDir:  filepath.Join(workDir, DistDirName),
	}
	for _, dir := range []string{result.CacheDir, result.BuildDir, result.DistDir} {
		if err := os.MkdirAll(dir, workDirMode); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	markerPath := filepath.Join(workDir, MarkerFileName)
	result.Reused = e.markerMatches(markerPath, project.SourceChecksum)

	if err := e.importKeys(ctx, project, filepath.Join(result.CacheDir, KeysDirName), result.Reused); err != nil {
		return nil, err
	}
	if e.keys != nil {
		result.Keys = e.keys.KeyringSize()
	}

	if !result.Reused {
		marker := &entities.BootstrapMarker{
			ConfigChecksum: project.SourceChecksum,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.markers.SaveMarker(markerPath, marker); err != nil {
			return nil, err
		}
	}

	e.logger.Info("bootstrap complete",
		interfaces.F("workdir", workDir),
		interfaces.F("keys", result.Keys),
		interfaces.F("reused", result.Reused))

	return result, nil
}

// Release drops the run lock. Safe to call when no lock is held.
func (e *Environment) Release() error {
	if e.lockPath == "" {
		return nil
	}
	path := e.lockPath
	e.lockPath = ""

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file %s: %w", path, err)
	}
	return nil
}

// Clean removes everything the pipeline wrote under the working directory:
// cache, build and dist trees, the bootstrap marker and the lock file. A
// lock held by a live foreign process blocks the clean.
func (e *Environment) Clean(workDir string) error {
	lockPath := filepath.Join(workDir, LockFileName)
	if data, err := os.ReadFile(lockPath); err == nil {
		if pid, ok := parseLockPID(data); ok && pid != e.pid {
			alive, aliveErr := e.processAlive(pid)
			if aliveErr != nil {
				return fmt.Errorf("failed to check lock owner %d: %w", pid, aliveErr)
			}
			if alive {
				return fmt.Errorf("working directory is locked by running process %d", pid)
			}
		}
	}

	for _, name := range []string{CacheDirName, BuildDirName, DistDirName, MarkerFileName, LockFileName} {
		path := filepath.Join(workDir, name)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	e.logger.Info("working directory cleaned", interfaces.F("workdir", workDir))
	return nil
}

// acquireLock claims the working directory. A lock naming a live foreign
// process is contention; anything else (dead process, garbage content, our
// own pid) is stale and reclaimed.
func (e *Environment) acquireLock(path string) error {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if pid, ok := parseLockPID(data); ok && pid != e.pid {
			alive, aliveErr := e.processAlive(pid)
			if aliveErr != nil {
				return fmt.Errorf("failed to check lock owner %d: %w", pid, aliveErr)
			}
			if alive {
				return fmt.Errorf("working directory is locked by running process %d", pid)
			}
		}
		e.logger.Warn("reclaiming stale lock file", interfaces.F("path", path))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove stale lock file %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read lock file %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(e.pid)+"\n"), lockFileMode); err != nil {
		return fmt.Errorf("failed to write lock file %s: %w", path, err)
	}
	e.lockPath = path
	return nil
}

// markerMatches reports whether a marker exists and records the current
// configuration checksum. Unreadable markers mean re-bootstrap, not failure.
func (e *Environment) markerMatches(path, configChecksum string) bool {
	marker, err := e.markers.LoadMarker(path)
	if err != nil {
		return false
	}
	return configChecksum != "" && marker.ConfigChecksum == configChecksum
}

// importKeys loads the configured signing keys into the verifier keyring.
// Key URLs are pinned under the keys directory; when the bootstrap marker
// matched, the pinned copies are imported without touching the network.
func (e *Environment) importKeys(ctx context.Context, project *entities.Project, keysDir string, reused bool) error {
	sec := project.Security
	if len(sec.KeyFiles) == 0 && len(sec.KeyURLs) == 0 {
		if sec.VerifySignature {
			return fmt.Errorf("signature verification is enabled for %s but no keys are configured", project.Name)
		}
		return nil
	}
	if e.keys == nil {
		return fmt.Errorf("keys are configured for %s but no signature verifier is wired", project.Name)
	}

	if err := os.MkdirAll(keysDir, workDirMode); err != nil {
		return fmt.Errorf("failed to create %s: %w", keysDir, err)
	}

	for _, keyFile := range sec.KeyFiles {
		path := keyFile
		if !filepath.IsAbs(path) && project.SourcePath != "" {
			path = filepath.Join(filepath.Dir(project.SourcePath), path)
		}
		if err := e.keys.ImportKeyFromFile(path); err != nil {
			return err
		}
	}

	for _, keyURL := range sec.KeyURLs {
		pin := filepath.Join(keysDir, pinnedKeyName(keyURL))
		if reused {
			if _, err := os.Stat(pin); err == nil {
				if err := e.keys.ImportKeyFromFile(pin); err != nil {
					return fmt.Errorf("pinned key for %s: %w", keyURL, err)
				}
				continue
			}
		}

		data, err := e.keys.DownloadKeyring(ctx, keyURL)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pin, data, cacheFileMode); err != nil {
			return fmt.Errorf("failed to pin key material %s: %w", pin, err)
		}
		e.logger.Info("imported signing key", interfaces.F("url", keyURL))
	}

	return nil
}

// pinnedKeyName derives a stable file name for key material fetched from a URL
func pinnedKeyName(keyURL string) string {
	sum := sha256.Sum256([]byte(keyURL))
	return hex.EncodeToString(sum[:8]) + ".asc"
}

func parseLockPID(data []byte) (int, bool) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func defaultProcessAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}
	return process != nil, nil
}
