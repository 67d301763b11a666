// Package catalog holds the immutable tag reference data used by the engine.
package catalog

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
	"gopkg.in/yaml.v3"
)

// Catalog validation errors.
var (
	ErrEmptyCatalog  = errors.New("catalog has no tags")
	ErrEmptyTagName  = errors.New("tag name cannot be empty")
	ErrDuplicateTag  = errors.New("duplicate tag")
	ErrUnknownTarget = errors.New("references unknown tag")
)

// Definition is the editable form of a catalog, as read from YAML.
type Definition struct {
	Hints    map[string][]string `yaml:"hints"`
	Brands   map[string]string   `yaml:"brands"`
	Fallback string              `yaml:"fallback"`
	Tags     []model.Tag         `yaml:"tags"`
}

// Catalog is an ordered, read-only set of tags. Order matters: it breaks
// ties everywhere in the engine.
type Catalog struct {
	index    map[string]int
	hints    map[string][]string
	brands   map[string]string
	fallback string
	tags     []model.Tag
}

// New validates def and builds a catalog. Keywords, hints and brands are normalized.
func New(def Definition) (*Catalog, error) {
	if len(def.Tags) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		index:  make(map[string]int, len(def.Tags)),
		hints:  make(map[string][]string, len(def.Hints)),
		brands: make(map[string]string, len(def.Brands)),
		tags:   make([]model.Tag, 0, len(def.Tags)),
	}

	for i, tag := range def.Tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			return nil, fmt.Errorf("tag at index %d: %w", i, ErrEmptyTagName)
		}
		if _, exists := c.index[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, name)
		}
		c.index[name] = len(c.tags)
		c.tags = append(c.tags, model.Tag{Name: name, Keywords: normalizeWords(tag.Keywords)})
	}

	// Sorted keys: the first unknown target in key order is reported, and the
	// last of several brands that normalize alike wins.
	for _, name := range slices.Sorted(maps.Keys(def.Hints)) {
		if _, ok := c.index[name]; !ok {
			return nil, fmt.Errorf("hints for %q: %w", name, ErrUnknownTarget)
		}
		c.hints[name] = normalizeWords(def.Hints[name])
	}

	for _, brand := range slices.Sorted(maps.Keys(def.Brands)) {
		name := def.Brands[brand]
		if _, ok := c.index[name]; !ok {
			return nil, fmt.Errorf("brand %q: %w %q", brand, ErrUnknownTarget, name)
		}
		key := normalize.Payee(brand)
		if key == "" {
			continue
		}
		c.brands[key] = name
	}

	if def.Fallback != "" {
		if _, ok := c.index[def.Fallback]; !ok {
			return nil, fmt.Errorf("fallback: %w %q", ErrUnknownTarget, def.Fallback)
		}
		c.fallback = def.Fallback
	}

	return c, nil
}

// Load reads a catalog definition from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from local config
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// Len returns the number of tags.
func (c *Catalog) Len() int { return len(c.tags) }

// Tags returns a copy of the tags in catalog order.
func (c *Catalog) Tags() []model.Tag {
	out := make([]model.Tag, len(c.tags))
	for i, tag := range c.tags {
		out[i] = tag.Clone()
	}
	return out
}

// Names returns tag names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tags))
	for i, tag := range c.tags {
		names[i] = tag.Name
	}
	return names
}

// Tag looks up a tag by name.
func (c *Catalog) Tag(name string) (model.Tag, bool) {
	i, ok := c.index[name]
	if !ok {
		return model.Tag{}, false
	}
	return c.tags[i].Clone(), true
}

// Position returns the catalog index of a tag, or -1.
func (c *Catalog) Position(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Hints returns the family words for a tag.
func (c *Catalog) Hints(name string) []string {
	words := c.hints[name]
	out := make([]string, len(words))
	copy(out, words)
	return out
}

// BrandTag returns the tag a brand word maps to.
func (c *Catalog) BrandTag(word string) (string, bool) {
	name, ok := c.brands[word]
	return name, ok
}

// Fallback returns the catch-all tag name, if configured.
func (c *Catalog) Fallback() (string, bool) {
	return c.fallback, c.fallback != ""
}

// Definition returns an editable copy of the catalog.
func (c *Catalog) Definition() Definition {
	def := Definition{
		Tags:     c.Tags(),
		Hints:    make(map[string][]string, len(c.hints)),
		Brands:   make(map[string]string, len(c.brands)),
		Fallback: c.fallback,
	}
	for name := range c.hints {
		def.Hints[name] = c.Hints(name)
	}
	for brand, name := range c.brands {
		def.Brands[brand] = name
	}
	return def
}

func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := normalize.Payee(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}
