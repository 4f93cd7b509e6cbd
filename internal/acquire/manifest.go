package acquire

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

// Manifest is the declarative list of disclosure sources the collector
// knows how to fetch. It lives in version control next to the binary, not
// in the database, so adding a source is a reviewed change.
type Manifest struct {
	Version int              `yaml:"version"`
	Sources []ManifestSource `yaml:"sources"`
}

// ManifestSource is one publisher feed with its download URLs.
type ManifestSource struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Provider       string        `yaml:"provider"`
	Format         string        `yaml:"format"`
	URLs           []ManifestURL `yaml:"urls"`
	RequiresAPIKey bool          `yaml:"requires_api_key"`
	Enabled        *bool         `yaml:"enabled"`
}

// IsEnabled reports whether the source should be collected; sources are
// enabled unless the manifest says otherwise.
func (s ManifestSource) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ManifestURL is one downloadable document within a source.
type ManifestURL struct {
	Year        int    `yaml:"year,omitempty"`
	Month       int    `yaml:"month,omitempty"`
	Quarter     int    `yaml:"quarter,omitempty"`
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
}

// LoadManifest reads and validates a source manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrapf(fault.KindStorage, err, "manifest: read %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fault.Wrapf(fault.KindStorage, err, "manifest: parse %s", path)
	}

	if m.Version != 1 {
		return nil, fault.Errorf(fault.KindStorage, "manifest: unsupported version %d", m.Version)
	}

	seen := make(map[string]bool, len(m.Sources))
	for _, src := range m.Sources {
		if src.ID == "" {
			return nil, fault.New(fault.KindStorage, "manifest: source with empty id")
		}
		if seen[src.ID] {
			return nil, fault.Errorf(fault.KindStorage, "manifest: duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		for _, u := range src.URLs {
			if u.URL == "" {
				return nil, fault.Errorf(fault.KindStorage, "manifest: source %q has an empty url", src.ID)
			}
		}
	}

	return &m, nil
}

// Source returns the source with the given id, or nil.
func (m *Manifest) Source(id string) *ManifestSource {
	for i := range m.Sources {
		if m.Sources[i].ID == id {
			return &m.Sources[i]
		}
	}
	return nil
}
