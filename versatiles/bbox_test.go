package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBoxIterCoords(t *testing.T) {
	bbox, err := NewTileBBox(4, 2, 3, 5, 7)
	require.NoError(t, err)

	coords := bbox.IterCoords()
	assert.Equal(t, int(bbox.Count()), len(coords))
	assert.Equal(t, (5-2+1)*(7-3+1), len(coords))

	// row-major, y outer
	assert.Equal(t, TileCoord3{4, 2, 3}, coords[0])
	assert.Equal(t, TileCoord3{4, 3, 3}, coords[1])
	assert.Equal(t, TileCoord3{4, 5, 7}, coords[len(coords)-1])

	seen := make(map[TileCoord3]bool)
	for _, c := range coords {
		assert.False(t, seen[c], "duplicate coord %s", c)
		seen[c] = true
		assert.True(t, bbox.Contains(c))
	}
}

func TestBBoxValidation(t *testing.T) {
	_, err := NewTileBBox(2, 3, 0, 1, 0)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = NewTileBBox(2, 0, 0, 4, 0)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = NewTileBBox(32, 0, 0, 0, 0)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBBoxEmpty(t *testing.T) {
	empty := NewEmptyTileBBox(3)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, uint64(0), empty.Count())
	assert.Nil(t, empty.IterCoords())
	assert.False(t, empty.Contains(TileCoord3{3, 0, 0}))

	empty.IncludeCoord(TileCoord3{3, 5, 6})
	assert.False(t, empty.IsEmpty())
	assert.Equal(t, uint64(1), empty.Count())
}

func TestBBoxUnionIntersect(t *testing.T) {
	a, _ := NewTileBBox(5, 2, 2, 6, 6)
	b, _ := NewTileBBox(5, 4, 4, 9, 9)

	u := a
	u.Union(b)
	assert.Equal(t, TileBBox{Level: 5, XMin: 2, YMin: 2, XMax: 9, YMax: 9}, u)

	i := a
	i.Intersect(b)
	assert.Equal(t, TileBBox{Level: 5, XMin: 4, YMin: 4, XMax: 6, YMax: 6}, i)

	disjoint, _ := NewTileBBox(5, 20, 20, 22, 22)
	i = a
	i.Intersect(disjoint)
	assert.True(t, i.IsEmpty())
}

func TestBBoxGeoRoundtrip(t *testing.T) {
	full := NewFullTileBBox(0)
	geo := full.ToGeoBBox()
	assert.InDelta(t, -180.0, geo.West, 1e-9)
	assert.InDelta(t, 180.0, geo.East, 1e-9)
	assert.InDelta(t, 85.0511, geo.North, 0.001)
	assert.InDelta(t, -85.0511, geo.South, 0.001)

	back := GeoToTileBBox(3, GeoBBox{West: -180, South: -85.0511, East: 179.9999, North: 85.0511})
	assert.Equal(t, NewFullTileBBox(3), back)
}

func TestBBoxMaxZoomCorner(t *testing.T) {
	max := uint32(1)<<31 - 1
	bbox, err := NewTileBBox(31, max, max, max, max)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bbox.Count())
	assert.Equal(t, []TileCoord3{{31, max, max}}, bbox.IterCoords())
}
