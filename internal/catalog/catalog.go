// Package catalog loads the static effect catalog and export presets.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

//go:embed default_catalog.toml
var defaultCatalog string

// ErrEmptyCatalog is returned when a catalog file defines no effects.
var ErrEmptyCatalog = errors.New("effect catalog has no effects")

// Catalog is the set of effects a batch may request, in display order.
type Catalog struct {
	Effects       []models.CatalogEffect `toml:"effects"`
	ExportPresets []models.ExportPreset  `toml:"export_presets"`

	index map[string]models.CatalogEffect
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse([]byte(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML catalog data. Effect codes are normalized to lower case and must be unique.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Effects) == 0 {
		return nil, ErrEmptyCatalog
	}
	c.index = make(map[string]models.CatalogEffect, len(c.Effects))
	for i := range c.Effects {
		code := strings.ToLower(strings.TrimSpace(c.Effects[i].Code))
		if code == "" {
			return nil, fmt.Errorf("effect %d has no code", i)
		}
		if _, dup := c.index[code]; dup {
			return nil, fmt.Errorf("duplicate effect code %q", code)
		}
		c.Effects[i].Code = code
		c.index[code] = c.Effects[i]
	}
	return &c, nil
}

// Lookup returns the catalog entry for code.
func (c *Catalog) Lookup(code string) (models.CatalogEffect, bool) {
	e, ok := c.index[strings.ToLower(strings.TrimSpace(code))]
	return e, ok
}

// Has reports whether code is in the catalog.
func (c *Catalog) Has(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

// Codes returns every effect code in display order.
func (c *Catalog) Codes() []string {
	codes := make([]string, len(c.Effects))
	for i, e := range c.Effects {
		codes[i] = e.Code
	}
	return codes
}
