package services

import (
	"testing"

	"github.com/ochairo/redist/internal/domain/entities"
)

func testProject() *entities.Project {
	return &entities.Project{
		Name:       "buf-exe",
		Executable: entities.ExecutableConfig{Name: "buf"},
		Platforms: []entities.PlatformTarget{
			{AssetSuffix: "Linux-x86_64", OS: "linux", Arch: "amd64", WheelTag: "manylinux_2_5_x86_64.manylinux1_x86_64"},
			{AssetSuffix: "Linux-aarch64", OS: "linux", Arch: "arm64", WheelTag: "manylinux_2_17_aarch64.manylinux2014_aarch64"},
			{AssetSuffix: "Darwin-arm64", OS: "darwin", Arch: "arm64", WheelTag: "macosx_11_0_arm64"},
			{AssetSuffix: "Darwin-x86_64", OS: "darwin", Arch: "amd64", WheelTag: "macosx_10_4_x86_64"},
			{AssetSuffix: "Windows-x86_64", OS: "windows", Arch: "amd64", WheelTag: "win_amd64"},
			{AssetSuffix: "Windows-arm64", OS: "windows", Arch: "arm64", WheelTag: "win_arm64"},
		},
	}
}

func TestMapAssetPlatform(t *testing.T) {
	project := testProject()

	tests := []struct {
		name          string
		assetName     string
		expectedTag   string
		expectMatched bool
	}{
		{
			name:          "linux amd64 asset",
			assetName:     "buf-Linux-x86_64",
			expectedTag:   "manylinux_2_5_x86_64.manylinux1_x86_64",
			expectMatched: true,
		},
		{
			name:          "windows asset with extension",
			assetName:     "buf-Windows-x86_64.exe",
			expectedTag:   "win_amd64",
			expectMatched: true,
		},
		{
			name:          "darwin arm64 asset",
			assetName:     "buf-Darwin-arm64",
			expectedTag:   "macosx_11_0_arm64",
			expectMatched: true,
		},
		{
			name:          "unconfigured platform",
			assetName:     "buf-NetBSD-x86_64",
			expectMatched: false,
		},
		{
			name:          "checksum manifest is not a platform",
			assetName:     "sha256.txt",
			expectMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := MapAssetPlatform(project, tt.assetName)
			if ok != tt.expectMatched {
				t.Fatalf("expected matched=%v, got %v", tt.expectMatched, ok)
			}
			if ok && target.WheelTag != tt.expectedTag {
				t.Errorf("expected wheel tag %q, got %q", tt.expectedTag, target.WheelTag)
			}
		})
	}
}

func TestWheelPlatformTag(t *testing.T) {
	target := entities.PlatformTarget{WheelTag: "win_amd64"}
	expected := "py2.py3-none-win_amd64"
	if tag := WheelPlatformTag(target); tag != expected {
		t.Errorf("expected %q, got %q", expected, tag)
	}
}

func TestFindHostTarget(t *testing.T) {
	project := testProject()

	tests := []struct {
		name        string
		goos        string
		goarch      string
		expectedTag string
		expectFound bool
	}{
		{name: "linux amd64", goos: "linux", goarch: "amd64", expectedTag: "manylinux_2_5_x86_64.manylinux1_x86_64", expectFound: true},
		{name: "darwin arm64", goos: "darwin", goarch: "arm64", expectedTag: "macosx_11_0_arm64", expectFound: true},
		{name: "windows arm64", goos: "windows", goarch: "arm64", expectedTag: "win_arm64", expectFound: true},
		{name: "unsupported host", goos: "freebsd", goarch: "amd64", expectFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := FindHostTarget(project, tt.goos, tt.goarch)
			if ok != tt.expectFound {
				t.Fatalf("expected found=%v, got %v", tt.expectFound, ok)
			}
			if ok && target.WheelTag != tt.expectedTag {
				t.Errorf("expected wheel tag %q, got %q", tt.expectedTag, target.WheelTag)
			}
		})
	}
}

func TestHostLayout(t *testing.T) {
	project := testProject()

	layout, target, ok := HostLayout(project, "1.28.1", "windows", "amd64")
	if !ok {
		t.Fatal("expected a host layout for windows/amd64")
	}
	if layout.FileName() != "buf_exe-1.28.1-py2.py3-none-win_amd64.whl" {
		t.Errorf("unexpected wheel file name: %s", layout.FileName())
	}
	if layout.ExecutableName() != "buf.exe" {
		t.Errorf("expected windows executable name buf.exe, got %s", layout.ExecutableName())
	}
	if target.AssetSuffix != "Windows-x86_64" {
		t.Errorf("expected the windows target, got %s", target.AssetSuffix)
	}

	if _, _, ok := HostLayout(project, "1.28.1", "plan9", "amd64"); ok {
		t.Error("expected no layout for an unconfigured host")
	}
}
