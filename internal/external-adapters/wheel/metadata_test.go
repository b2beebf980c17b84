package wheel

import (
	"strings"
	"testing"

	"github.com/ochairo/redist/internal/domain/entities"
)

func metadataProject() *entities.Project {
	return &entities.Project{
		Name:    "buf-exe",
		Summary: "PyPI packaged Buf CLI",
		Upstream: entities.RemoteRepo{
			Owner: "bufbuild",
			Repo:  "buf",
		},
		Metadata: entities.PackageMetadata{
			Author:          "Buf Technologies",
			Maintainer:      "Fleshgrinder",
			MaintainerEmail: "pypi@fleshgrinder.com",
			HomePage:        "https://github.com/fleshgrinder/python-buf-exe",
			License:         "Apache-2.0",
			Classifiers: []string{
				"Topic :: Utilities",
				"License :: OSI Approved :: Apache Software License",
			},
			ProjectURLs: []string{
				"Official Website, https://buf.build/",
				"Source Code, https://github.com/bufbuild/buf",
			},
		},
	}
}

func TestBuildPackageMetadata(t *testing.T) {
	project := metadataProject()
	layout := entities.PackageLayout{
		Name:        "buf-exe",
		Version:     "1.28.1",
		PlatformTag: "py2.py3-none-win_amd64",
		Executable:  "buf",
	}

	meta := BuildPackageMetadata(project, layout, "v1.28.1", "# Buf\n\nThe Buf CLI.\n")

	tests := []struct {
		header   string
		expected string
	}{
		{header: "Metadata-Version", expected: "2.1"},
		{header: "Name", expected: "buf-exe"},
		{header: "Version", expected: "1.28.1"},
		{header: "Summary", expected: "PyPI packaged Buf CLI"},
		{header: "License", expected: "Apache-2.0"},
		{header: "License-File", expected: "LICENSE"},
		{header: "Download-URL", expected: "https://github.com/bufbuild/buf/releases/tag/v1.28.1"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := meta.Get(tt.header); got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.expected)
			}
		})
	}

	if classifiers := meta.Values("Classifier"); len(classifiers) != 2 {
		t.Errorf("expected 2 classifiers, got %d", len(classifiers))
	}
	if meta.Body == "" {
		t.Error("expected description body")
	}
}

func TestBuildPackageMetadataOmitsEmptyHeaders(t *testing.T) {
	project := metadataProject()
	project.Metadata.Maintainer = ""
	project.Metadata.MaintainerEmail = ""

	meta := BuildPackageMetadata(project, entities.PackageLayout{Name: "buf-exe", Version: "1.0.0"}, "v1.0.0", "")

	if got := meta.Get("Maintainer"); got != "" {
		t.Errorf("expected Maintainer to be omitted, got %q", got)
	}
	for _, f := range meta.Fields {
		if f.Value == "" {
			t.Errorf("header %s has empty value", f.Name)
		}
	}
}

func TestBuildWheelMetadata(t *testing.T) {
	layout := entities.PackageLayout{PlatformTag: "py2.py3-none-manylinux_2_5_x86_64.manylinux1_x86_64"}

	meta := BuildWheelMetadata("https://github.com/fleshgrinder/python-buf-exe", layout)

	if got := meta.Get("Wheel-Version"); got != "1.0" {
		t.Errorf("Wheel-Version = %q, want 1.0", got)
	}
	if got := meta.Get("Root-Is-Purelib"); got != "false" {
		t.Errorf("Root-Is-Purelib = %q, want false", got)
	}
	if got := meta.Get("Tag"); got != layout.PlatformTag {
		t.Errorf("Tag = %q, want %q", got, layout.PlatformTag)
	}
}

func TestMetadataEncodeParseRoundTrip(t *testing.T) {
	original := &Metadata{
		Fields: []HeaderField{
			{Name: "Metadata-Version", Value: "2.1"},
			{Name: "Name", Value: "buf-exe"},
			{Name: "Classifier", Value: "Topic :: Utilities"},
			{Name: "Classifier", Value: "License :: OSI Approved :: Apache Software License"},
		},
		Body: "# Heading\n\nBody text.\n",
	}

	parsed, err := ParseMetadata(original.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(parsed.Fields) != len(original.Fields) {
		t.Fatalf("expected %d fields, got %d", len(original.Fields), len(parsed.Fields))
	}
	for i, f := range parsed.Fields {
		if f != original.Fields[i] {
			t.Errorf("field %d = %+v, want %+v", i, f, original.Fields[i])
		}
	}
	if parsed.Body != original.Body {
		t.Errorf("body = %q, want %q", parsed.Body, original.Body)
	}
}

func TestMetadataEncodeHeaderOrder(t *testing.T) {
	project := metadataProject()
	layout := entities.PackageLayout{Name: "buf-exe", Version: "1.28.1"}

	encoded := string(BuildPackageMetadata(project, layout, "v1.28.1", "body").Encode())

	// Anchored at line starts so "Metadata-Version" does not match
	nameIdx := strings.Index(encoded, "\nName: ")
	versionIdx := strings.Index(encoded, "\nVersion: ")
	if nameIdx < 0 || versionIdx < 0 {
		t.Fatal("expected Name and Version headers")
	}
	if versionIdx < nameIdx {
		t.Error("expected Version to be rendered after Name")
	}
}

func TestParseMetadataMalformed(t *testing.T) {
	if _, err := ParseMetadata([]byte("this is not a header\nName: x\n")); err == nil {
		t.Error("expected error for malformed header line")
	}
}
