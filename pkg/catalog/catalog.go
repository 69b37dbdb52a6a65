// Package catalog loads the registry of statutes to ingest. The registry is a
// YAML file listing every document the archive publishes, with optional
// per-format URL overrides for documents that deviate from the conventional
// layout of the Cámara de Diputados archive.
package catalog

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// idPattern constrains IDs to archive-style slugs. IDs become URL path
// segments and store file names, so no separators or dot-prefixes.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// DocumentStatus indicates whether a statute is currently in force.
type DocumentStatus string

const (
	// StatusVigente indicates the statute is in force.
	StatusVigente DocumentStatus = "vigente"

	// StatusAbrogada indicates the statute has been abrogated.
	StatusAbrogada DocumentStatus = "abrogada"
)

// Descriptor identifies one statute in the archive and where to fetch it.
// Descriptors are immutable once loaded; the pipeline never discovers
// documents on its own.
type Descriptor struct {
	// ID is the archive identifier, e.g. "lftr" for the
	// Ley Federal de Telecomunicaciones y Radiodifusión.
	ID string `yaml:"id" json:"id"`

	// Title is the full official title of the statute.
	Title string `yaml:"title" json:"title"`

	// ShortTitle is the common abbreviation (e.g. "LFTR").
	ShortTitle string `yaml:"short_title,omitempty" json:"short_title,omitempty"`

	// Status indicates whether the statute is in force.
	Status DocumentStatus `yaml:"status,omitempty" json:"status,omitempty"`

	// Published is the DOF publication date (dd-mm-yyyy).
	Published string `yaml:"published,omitempty" json:"published,omitempty"`

	// Description is a short human-readable summary.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// MarkupURL overrides the conventional reform-history page URL.
	MarkupURL string `yaml:"markup_url,omitempty" json:"markup_url,omitempty"`

	// WordURLs are explicit word-export URLs tried before the
	// conventional patterns.
	WordURLs []string `yaml:"word_urls,omitempty" json:"word_urls,omitempty"`

	// PDFURLs are explicit PDF-export URLs tried before the
	// conventional patterns.
	PDFURLs []string `yaml:"pdf_urls,omitempty" json:"pdf_urls,omitempty"`
}

// Catalog is an ordered registry of statute descriptors with ID lookup.
type Catalog struct {
	descriptors []Descriptor
	byID        map[string]int
}

// registryFile is the on-disk shape of the catalog YAML.
type registryFile struct {
	Documents []Descriptor `yaml:"documents"`
}

// Load reads and validates a catalog registry from a YAML file.
func Load(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	defer file.Close()

	cat, err := LoadFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return cat, nil
}

// LoadFromReader reads and validates a catalog registry from a reader.
// Unknown YAML keys are ignored so older binaries can read newer registries.
func LoadFromReader(reader io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog data: %w", err)
	}

	var registry registryFile
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	return New(registry.Documents)
}

// New builds a Catalog from descriptors, validating IDs.
func New(descriptors []Descriptor) (*Catalog, error) {
	byID := make(map[string]int, len(descriptors))
	for i, descriptor := range descriptors {
		if descriptor.ID == "" {
			return nil, fmt.Errorf("document %d: id is required", i)
		}
		if !idPattern.MatchString(descriptor.ID) {
			return nil, fmt.Errorf("document %s: id must be an archive slug (letters, digits, '.', '_', '-')", descriptor.ID)
		}
		if _, exists := byID[descriptor.ID]; exists {
			return nil, fmt.Errorf("document %s: duplicate id", descriptor.ID)
		}
		byID[descriptor.ID] = i
	}

	return &Catalog{
		descriptors: descriptors,
		byID:        byID,
	}, nil
}

// Get returns the descriptor with the given ID, or false if not present.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	index, ok := c.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.descriptors[index], true
}

// All returns the descriptors in registry order.
func (c *Catalog) All() []Descriptor {
	result := make([]Descriptor, len(c.descriptors))
	copy(result, c.descriptors)
	return result
}

// Len returns the number of registered documents.
func (c *Catalog) Len() int {
	return len(c.descriptors)
}
