package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/external-adapters/yaml"
)

type fakeKeyImporter struct {
	fileImports []string
	urlImports  []string

	downloadData []byte
	downloadErr  error
	fileErr      error
	size         int
}

func (f *fakeKeyImporter) ImportKeyFromFile(keyPath string) error {
	if f.fileErr != nil {
		return f.fileErr
	}
	f.fileImports = append(f.fileImports, keyPath)
	f.size++
	return nil
}

func (f *fakeKeyImporter) DownloadKeyring(_ context.Context, keysURL string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	f.urlImports = append(f.urlImports, keysURL)
	f.size++
	return f.downloadData, nil
}

func (f *fakeKeyImporter) KeyringSize() int {
	return f.size
}

func envProject() *entities.Project {
	return &entities.Project{
		Name:           "buf-exe",
		SourceChecksum: "cafe0123cafe0123",
	}
}

func newTestEnvironment(keys KeyImporter) *Environment {
	return NewEnvironment(keys, yaml.NewStateStore(), nil)
}

func TestEnvironment_Bootstrap_CreatesLayout(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "work")
	env := newTestEnvironment(nil)

	result, err := env.Bootstrap(context.Background(), envProject(), workDir)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	for _, dir := range []string{result.CacheDir, result.BuildDir, result.DistDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
	if result.CacheDir != filepath.Join(workDir, ".cache") {
		t.Errorf("CacheDir = %s", result.CacheDir)
	}
	if result.Reused {
		t.Error("first bootstrap reported as reused")
	}

	lock, err := os.ReadFile(filepath.Join(workDir, LockFileName))
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if strings.TrimSpace(string(lock)) != fmt.Sprint(os.Getpid()) {
		t.Errorf("lock file holds %q, want own pid", lock)
	}
	if _, err := os.Stat(filepath.Join(workDir, MarkerFileName)); err != nil {
		t.Errorf("marker file missing: %v", err)
	}

	if err := env.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file still present after release")
	}
}

func TestEnvironment_Bootstrap_MarkerReuse(t *testing.T) {
	workDir := t.TempDir()
	project := envProject()
	env := newTestEnvironment(nil)

	if _, err := env.Bootstrap(context.Background(), project, workDir); err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}
	if err := env.Release(); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(filepath.Join(workDir, MarkerFileName))
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.Bootstrap(context.Background(), project, workDir)
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if !result.Reused {
		t.Error("expected second bootstrap to reuse the marker")
	}

	after, err := os.ReadFile(filepath.Join(workDir, MarkerFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("marker file rewritten on reuse")
	}
}

func TestEnvironment_Bootstrap_ConfigChange(t *testing.T) {
	workDir := t.TempDir()
	project := envProject()
	env := newTestEnvironment(nil)

	if _, err := env.Bootstrap(context.Background(), project, workDir); err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}
	if err := env.Release(); err != nil {
		t.Fatal(err)
	}

	project.SourceChecksum = "feed4567feed4567"
	result, err := env.Bootstrap(context.Background(), project, workDir)
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if result.Reused {
		t.Error("config change must trigger re-bootstrap")
	}

	marker, err := os.ReadFile(filepath.Join(workDir, MarkerFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(marker), "feed4567feed4567") {
		t.Errorf("marker not updated: %s", marker)
	}
}

func TestEnvironment_Bootstrap_LockContention(t *testing.T) {
	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, LockFileName), []byte("4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	env := newTestEnvironment(nil)
	env.processAlive = func(pid int) (bool, error) {
		if pid != 4242 {
			t.Errorf("checked pid %d, want 4242", pid)
		}
		return true, nil
	}

	_, err := env.Bootstrap(context.Background(), envProject(), workDir)

	if err == nil {
		t.Fatal("Expected lock contention error, got nil")
	}
	if !strings.Contains(err.Error(), "locked by running process 4242") {
		t.Errorf("Expected contention error, got: %v", err)
	}
}

func TestEnvironment_Bootstrap_StaleLockReclaimed(t *testing.T) {
	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, LockFileName), []byte("4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	env := newTestEnvironment(nil)
	env.processAlive = func(int) (bool, error) { return false, nil }

	if _, err := env.Bootstrap(context.Background(), envProject(), workDir); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	lock, err := os.ReadFile(filepath.Join(workDir, LockFileName))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(lock)) != fmt.Sprint(os.Getpid()) {
		t.Errorf("lock file holds %q after reclaim, want own pid", lock)
	}
}

func TestEnvironment_Bootstrap_GarbageLockReclaimed(t *testing.T) {
	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, LockFileName), []byte("not a pid"), 0o600); err != nil {
		t.Fatal(err)
	}

	env := newTestEnvironment(nil)
	env.processAlive = func(int) (bool, error) {
		t.Error("process check consulted for garbage lock content")
		return true, nil
	}

	if _, err := env.Bootstrap(context.Background(), envProject(), workDir); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
}

func TestEnvironment_Bootstrap_KeyImport(t *testing.T) {
	workDir := t.TempDir()

	configDir := t.TempDir()
	project := envProject()
	project.SourcePath = filepath.Join(configDir, "redist.yaml")
	project.Security = entities.SecurityConfig{
		VerifySignature: true,
		KeyFiles:        []string{"signing-key.asc"},
		KeyURLs:         []string{"https://example.com/release-key.asc"},
	}

	keys := &fakeKeyImporter{downloadData: []byte("key material")}
	env := newTestEnvironment(keys)

	result, err := env.Bootstrap(context.Background(), project, workDir)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if result.Keys != 2 {
		t.Errorf("Keys = %d, want 2", result.Keys)
	}
	wantFile := filepath.Join(configDir, "signing-key.asc")
	if len(keys.fileImports) != 1 || keys.fileImports[0] != wantFile {
		t.Errorf("file imports = %v, want [%s]", keys.fileImports, wantFile)
	}
	if len(keys.urlImports) != 1 || keys.urlImports[0] != "https://example.com/release-key.asc" {
		t.Errorf("url imports = %v", keys.urlImports)
	}

	// Downloaded key material is pinned under the cache for later runs
	entries, err := os.ReadDir(filepath.Join(result.CacheDir, KeysDirName))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("pinned keys = %d, want 1", len(entries))
	}
	pinned, err := os.ReadFile(filepath.Join(result.CacheDir, KeysDirName, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(pinned) != "key material" {
		t.Errorf("pinned key content = %q", pinned)
	}
}

func TestEnvironment_Bootstrap_PinnedKeyReused(t *testing.T) {
	workDir := t.TempDir()
	project := envProject()
	project.Security = entities.SecurityConfig{
		VerifySignature: true,
		KeyURLs:         []string{"https://example.com/release-key.asc"},
	}

	first := &fakeKeyImporter{downloadData: []byte("key material")}
	env := newTestEnvironment(first)
	if _, err := env.Bootstrap(context.Background(), project, workDir); err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}
	if err := env.Release(); err != nil {
		t.Fatal(err)
	}

	second := &fakeKeyImporter{downloadData: []byte("key material")}
	env = newTestEnvironment(second)
	result, err := env.Bootstrap(context.Background(), project, workDir)
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	if !result.Reused {
		t.Fatal("expected marker reuse")
	}
	if len(second.urlImports) != 0 {
		t.Errorf("key downloaded again despite pinned copy: %v", second.urlImports)
	}
	if len(second.fileImports) != 1 || !strings.HasSuffix(second.fileImports[0], ".asc") {
		t.Errorf("pinned key not imported: %v", second.fileImports)
	}
}

func TestEnvironment_Bootstrap_KeyDownloadFails(t *testing.T) {
	project := envProject()
	project.Security = entities.SecurityConfig{
		KeyURLs: []string{"https://example.com/release-key.asc"},
	}

	keys := &fakeKeyImporter{downloadErr: fmt.Errorf("connection refused")}
	env := newTestEnvironment(keys)

	_, err := env.Bootstrap(context.Background(), project, t.TempDir())

	if err == nil {
		t.Fatal("Expected bootstrap error, got nil")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected download error, got: %v", err)
	}
}

func TestEnvironment_Bootstrap_KeyFileFails(t *testing.T) {
	project := envProject()
	project.Security = entities.SecurityConfig{
		KeyFiles: []string{"/nonexistent/signing-key.asc"},
	}

	keys := &fakeKeyImporter{fileErr: fmt.Errorf("no such file")}
	env := newTestEnvironment(keys)

	_, err := env.Bootstrap(context.Background(), project, t.TempDir())

	if err == nil {
		t.Fatal("Expected bootstrap error, got nil")
	}
	if !strings.Contains(err.Error(), "no such file") {
		t.Errorf("Expected key file error, got: %v", err)
	}
}

func TestEnvironment_Bootstrap_VerifyWithoutKeys(t *testing.T) {
	project := envProject()
	project.Security.VerifySignature = true

	env := newTestEnvironment(&fakeKeyImporter{})

	_, err := env.Bootstrap(context.Background(), project, t.TempDir())

	if err == nil {
		t.Fatal("Expected bootstrap error, got nil")
	}
	if !strings.Contains(err.Error(), "no keys are configured") {
		t.Errorf("Expected missing keys error, got: %v", err)
	}
}

func TestEnvironment_Clean(t *testing.T) {
	workDir := t.TempDir()
	env := newTestEnvironment(nil)

	if _, err := env.Bootstrap(context.Background(), envProject(), workDir); err != nil {
		t.Fatal(err)
	}
	if err := env.Release(); err != nil {
		t.Fatal(err)
	}

	if err := env.Clean(workDir); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	for _, name := range []string{CacheDirName, BuildDirName, DistDirName, MarkerFileName, LockFileName} {
		if _, err := os.Stat(filepath.Join(workDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still present after clean", name)
		}
	}
}

func TestEnvironment_Clean_LockedByLiveProcess(t *testing.T) {
	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, LockFileName), []byte("4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	env := newTestEnvironment(nil)
	env.processAlive = func(int) (bool, error) { return true, nil }

	err := env.Clean(workDir)

	if err == nil {
		t.Fatal("Expected clean to refuse, got nil")
	}
	if !strings.Contains(err.Error(), "locked by running process") {
		t.Errorf("Expected lock error, got: %v", err)
	}
}

func TestEnvironment_Release_Idempotent(t *testing.T) {
	env := newTestEnvironment(nil)

	if err := env.Release(); err != nil {
		t.Errorf("Release without lock failed: %v", err)
	}

	if _, err := env.Bootstrap(context.Background(), envProject(), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := env.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if err := env.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}
