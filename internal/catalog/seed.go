// ABOUTME: TOML seed manifests for bootstrapping the catalog
// ABOUTME: Declares elements, spaces, and placements loaded by presence-admin seed

package catalog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is a declarative catalog seed.
type Manifest struct {
	Elements []ManifestElement `toml:"elements"`
	Spaces   []ManifestSpace   `toml:"spaces"`
}

// ManifestElement declares an element template.
type ManifestElement struct {
	ID       string `toml:"id"`
	ImageURL string `toml:"image_url"`
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	Static   bool   `toml:"static"`
}

// ManifestSpace declares a space and its element placements.
// Dimensions use the catalog's "WIDTHxHEIGHT" form, e.g. "100x200".
type ManifestSpace struct {
	ID         string              `toml:"id"`
	Name       string              `toml:"name"`
	Dimensions string              `toml:"dimensions"`
	Elements   []ManifestPlacement `toml:"elements"`
}

// ManifestPlacement places one element instance inside a space.
type ManifestPlacement struct {
	Element string `toml:"element"`
	X       int    `toml:"x"`
	Y       int    `toml:"y"`
}

// LoadManifest reads and validates a seed manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	for i, sp := range m.Spaces {
		if sp.ID == "" {
			return nil, fmt.Errorf("spaces[%d]: id is required", i)
		}
		if _, _, err := ParseDimensions(sp.Dimensions); err != nil {
			return nil, fmt.Errorf("spaces[%d] (%s): %w", i, sp.ID, err)
		}
	}

	return &m, nil
}

// ParseDimensions splits a "WIDTHxHEIGHT" string into its parts.
func ParseDimensions(dims string) (width, height int, err error) {
	w, h, ok := strings.Cut(dims, "x")
	if !ok {
		return 0, 0, fmt.Errorf("dimensions %q must be WIDTHxHEIGHT", dims)
	}

	width, err = strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("dimensions %q: bad width", dims)
	}
	height, err = strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("dimensions %q: bad height", dims)
	}

	return width, height, nil
}

// ApplySeed writes a manifest's elements, spaces, and placements into the
// store. Elements and spaces keep their manifest ids so seeds are repeatable
// references for tokens and join requests.
func (s *Store) ApplySeed(ctx context.Context, m *Manifest) error {
	for _, e := range m.Elements {
		el := &Element{
			ID:       e.ID,
			ImageURL: e.ImageURL,
			Width:    e.Width,
			Height:   e.Height,
			Static:   e.Static,
		}
		if err := s.CreateElement(ctx, el); err != nil {
			return fmt.Errorf("seeding element %s: %w", e.ID, err)
		}
	}

	for _, sp := range m.Spaces {
		width, height, err := ParseDimensions(sp.Dimensions)
		if err != nil {
			return err
		}
		if _, err := s.CreateSpace(ctx, sp.ID, sp.Name, width, height, ""); err != nil {
			return fmt.Errorf("seeding space %s: %w", sp.ID, err)
		}
		for _, pl := range sp.Elements {
			if err := s.PlaceElement(ctx, sp.ID, pl.Element, pl.X, pl.Y); err != nil {
				return fmt.Errorf("placing %s in %s: %w", pl.Element, sp.ID, err)
			}
		}
	}

	s.logger.Info("seed applied",
		"elements", len(m.Elements),
		"spaces", len(m.Spaces),
	)
	return nil
}
