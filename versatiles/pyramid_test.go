package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPyramidFull(t *testing.T) {
	p := NewFullTileBBoxPyramid(7)
	assert.Equal(t, uint8(0), p.ZoomMin())
	assert.Equal(t, uint8(7), p.ZoomMax())

	var want uint64
	for z := uint8(0); z <= 7; z++ {
		want += uint64(1<<z) * uint64(1<<z)
	}
	assert.Equal(t, want, p.Count())
	assert.Equal(t, uint64(21845), p.Count())
	assert.Equal(t, 8, len(p.IterLevels()))
}

func TestPyramidIncludeCoord(t *testing.T) {
	p := NewTileBBoxPyramid()
	assert.True(t, p.IsEmpty())

	p.IncludeCoord(TileCoord3{3, 1, 2})
	p.IncludeCoord(TileCoord3{3, 4, 5})
	assert.Equal(t, TileBBox{Level: 3, XMin: 1, YMin: 2, XMax: 4, YMax: 5}, p.Level(3))
	assert.True(t, p.Contains(TileCoord3{3, 2, 3}))
	assert.False(t, p.Contains(TileCoord3{2, 0, 0}))

	levels := p.IterLevels()
	assert.Equal(t, 1, len(levels))
	assert.Equal(t, uint8(3), levels[0].Level)
}

func TestPyramidIntersect(t *testing.T) {
	a := NewFullTileBBoxPyramid(4)
	b := NewTileBBoxPyramid()
	b.IncludeCoord(TileCoord3{4, 0, 0})
	b.IncludeCoord(TileCoord3{4, 3, 3})

	a.Intersect(&b)
	assert.Equal(t, uint64(16), a.Count())
	assert.Equal(t, uint8(4), a.ZoomMin())
}

func TestPyramidLimitZoom(t *testing.T) {
	p := NewFullTileBBoxPyramid(6)
	p.LimitZoom(2, 4)
	assert.Equal(t, uint8(2), p.ZoomMin())
	assert.Equal(t, uint8(4), p.ZoomMax())
}
