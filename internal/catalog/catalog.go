// Package catalog loads the clinic's static configuration: treatment protocols,
// therapists and rooms.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayurcare/panchakarma/internal/domain/protocol"
	"github.com/ayurcare/panchakarma/internal/domain/resource"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Protocols  []protocol.Template  `yaml:"protocols"`
	Therapists []resource.Therapist `yaml:"therapists"`
	Rooms      []resource.Room      `yaml:"rooms"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// Build validates the catalog and returns the stores backed by it.
func (c *Catalog) Build() (*protocol.MemoryRepo, *resource.Registry, error) {
	protocols, err := protocol.NewMemoryRepo(c.Protocols)
	if err != nil {
		return nil, nil, err
	}
	reg, err := resource.NewRegistry(c.Therapists, c.Rooms)
	if err != nil {
		return nil, nil, err
	}
	return protocols, reg, nil
}
