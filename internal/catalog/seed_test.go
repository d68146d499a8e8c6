// ABOUTME: Tests for TOML seed manifest parsing and application
// ABOUTME: Verifies dimension parsing and that seeded spaces resolve via Lookup

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridhouse/presence-gateway/internal/grid"
)

const testManifest = `
[[elements]]
id = "tree"
image_url = "https://img/tree.png"
width = 1
height = 2
static = true

[[spaces]]
id = "meadow"
name = "Meadow"
dimensions = "100x200"

  [[spaces.elements]]
  element = "tree"
  x = 18
  y = 20

  [[spaces.elements]]
  element = "tree"
  x = 20
  y = 20
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, testManifest))
	require.NoError(t, err)

	require.Len(t, m.Elements, 1)
	require.Len(t, m.Spaces, 1)
	assert.Equal(t, "meadow", m.Spaces[0].ID)
	assert.Len(t, m.Spaces[0].Elements, 2)
}

func TestLoadManifest_RejectsBadDimensions(t *testing.T) {
	bad := `
[[spaces]]
id = "broken"
name = "Broken"
dimensions = "100by200"
`
	_, err := LoadManifest(writeManifest(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestParseDimensions(t *testing.T) {
	w, h, err := ParseDimensions("100x200")
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 200, h)

	for _, bad := range []string{"", "x", "10x", "x20", "-5x10", "0x10", "axb"} {
		_, _, err := ParseDimensions(bad)
		assert.Error(t, err, "dimensions %q should be rejected", bad)
	}
}

func TestApplySeed(t *testing.T) {
	store := newTestStore(t)

	m, err := LoadManifest(writeManifest(t, testManifest))
	require.NoError(t, err)

	require.NoError(t, store.ApplySeed(context.Background(), m))

	space, err := store.Lookup(context.Background(), "meadow")
	require.NoError(t, err)

	assert.Equal(t, 100, space.Width)
	assert.Equal(t, 200, space.Height)
	// Each 1x2 tree blocks its cell and the one below it
	assert.True(t, space.Blocked(grid.Position{X: 18, Y: 20}))
	assert.True(t, space.Blocked(grid.Position{X: 18, Y: 21}))
	assert.True(t, space.Blocked(grid.Position{X: 20, Y: 20}))
	assert.True(t, space.Blocked(grid.Position{X: 20, Y: 21}))
	assert.Len(t, space.Obstacles, 4)
}

func TestMemoryReader(t *testing.T) {
	reader := NewMemoryReader()
	reader.Add(&grid.Space{
		ID: "s1", Width: 10, Height: 10,
		Obstacles: map[grid.Position]struct{}{{X: 1, Y: 1}: {}},
	})

	space, err := reader.Lookup(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, space.Width)

	// Mutating the returned snapshot must not affect the stored one
	space.Obstacles[grid.Position{X: 2, Y: 2}] = struct{}{}
	again, err := reader.Lookup(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, again.Obstacles, 1)

	_, err = reader.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSpaceNotFound)
}
