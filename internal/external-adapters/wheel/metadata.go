// Package wheel reads and writes Python wheel archives. Wheels are zip files
// with a mandated member layout and an RFC 822 style metadata format; this
// package isolates those format rules from the pipeline.
package wheel

import (
	"fmt"
	"strings"

	"github.com/ochairo/redist/internal/domain/entities"
)

// WheelFormatVersion is the wheel spec version written into every archive
const WheelFormatVersion = "1.0"

// HeaderField is one metadata header. Repeatable headers (Classifier,
// Project-URL) appear as multiple fields with the same name.
type HeaderField struct {
	Name  string
	Value string
}

// Metadata is an ordered header list plus an optional body
type Metadata struct {
	Fields []HeaderField
	Body   string
}

// Get returns the first value of the named header, or ""
func (m *Metadata) Get(name string) string {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Values returns all values of the named header
func (m *Metadata) Values(name string) []string {
	var values []string
	for _, f := range m.Fields {
		if f.Name == name {
			values = append(values, f.Value)
		}
	}
	return values
}

// Encode renders the metadata in the RFC 822 derived format the package
// index expects: one "Name: value" line per field, a blank line, the body
func (m *Metadata) Encode() []byte {
	var b strings.Builder
	for _, f := range m.Fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(m.Body)
	}
	return []byte(b.String())
}

// ParseMetadata parses bytes produced by Encode back into Metadata. Header
// continuation lines are not supported; the writer never emits them.
func ParseMetadata(data []byte) (*Metadata, error) {
	text := string(data)
	headerPart := text
	body := ""
	if idx := strings.Index(text, "\n\n"); idx >= 0 {
		headerPart = text[:idx]
		body = text[idx+2:]
	}

	meta := &Metadata{Body: body}
	for i, line := range strings.Split(headerPart, "\n") {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ": ")
		if !found || name == "" {
			return nil, fmt.Errorf("malformed metadata header on line %d: %q", i+1, line)
		}
		meta.Fields = append(meta.Fields, HeaderField{Name: name, Value: value})
	}

	return meta, nil
}

// BuildPackageMetadata assembles the METADATA member for one wheel. Header
// order is stable so wheel bytes are reproducible.
func BuildPackageMetadata(project *entities.Project, layout entities.PackageLayout, tag, description string) *Metadata {
	meta := &Metadata{Body: description}
	add := func(name, value string) {
		if value != "" {
			meta.Fields = append(meta.Fields, HeaderField{Name: name, Value: value})
		}
	}

	add("Metadata-Version", "2.1")
	add("Name", project.Name)
	add("Summary", project.Summary)
	add("Description-Content-Type", "text/markdown")
	add("Author", project.Metadata.Author)
	add("Maintainer", project.Metadata.Maintainer)
	add("Maintainer-email", project.Metadata.MaintainerEmail)
	add("Home-page", project.Metadata.HomePage)
	add("License-File", "LICENSE")
	add("License", project.Metadata.License)
	for _, classifier := range project.Metadata.Classifiers {
		add("Classifier", classifier)
	}
	for _, projectURL := range project.Metadata.ProjectURLs {
		add("Project-URL", projectURL)
	}
	add("Version", layout.Version)
	add("Download-URL", fmt.Sprintf("https://github.com/%s/releases/tag/%s", project.Upstream.Slug(), tag))

	return meta
}

// BuildWheelMetadata assembles the WHEEL member for one wheel
func BuildWheelMetadata(generator string, layout entities.PackageLayout) *Metadata {
	return &Metadata{
		Fields: []HeaderField{
			{Name: "Wheel-Version", Value: WheelFormatVersion},
			{Name: "Generator", Value: generator},
			{Name: "Root-Is-Purelib", Value: "false"},
			{Name: "Tag", Value: layout.PlatformTag},
		},
	}
}
