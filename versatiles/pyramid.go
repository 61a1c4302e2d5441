package versatiles

import "strings"

// TileBBoxPyramid maps zoom levels to the bbox a reader covers at that
// level. Levels without coverage hold the empty bbox.
type TileBBoxPyramid struct {
	levels [MaxZoom + 1]TileBBox
}

// NewTileBBoxPyramid returns a pyramid with every level empty.
func NewTileBBoxPyramid() TileBBoxPyramid {
	var p TileBBoxPyramid
	for z := range p.levels {
		p.levels[z] = NewEmptyTileBBox(uint8(z))
	}
	return p
}

// NewFullTileBBoxPyramid covers every tile from zoom 0 through maxZoom.
func NewFullTileBBoxPyramid(maxZoom uint8) TileBBoxPyramid {
	p := NewTileBBoxPyramid()
	for z := uint8(0); z <= maxZoom; z++ {
		p.levels[z] = NewFullTileBBox(z)
	}
	return p
}

// Level returns the bbox at a zoom level.
func (p *TileBBoxPyramid) Level(z uint8) TileBBox {
	return p.levels[z]
}

// SetLevel replaces the bbox at its own zoom level.
func (p *TileBBoxPyramid) SetLevel(b TileBBox) {
	p.levels[b.Level] = b
}

// IncludeCoord grows the pyramid to cover the coordinate.
func (p *TileBBoxPyramid) IncludeCoord(c TileCoord3) {
	p.levels[c.Z].IncludeCoord(c)
}

// IncludeBBox grows the pyramid to cover the bbox.
func (p *TileBBoxPyramid) IncludeBBox(b TileBBox) {
	p.levels[b.Level].Union(b)
}

// Contains reports whether the coordinate lies inside the pyramid.
func (p *TileBBoxPyramid) Contains(c TileCoord3) bool {
	return p.levels[c.Z].Contains(c)
}

// Union grows every level to the hull of both pyramids.
func (p *TileBBoxPyramid) Union(o *TileBBoxPyramid) {
	for z := range p.levels {
		p.levels[z].Union(o.levels[z])
	}
}

// Intersect shrinks every level to the rectangle both pyramids cover.
func (p *TileBBoxPyramid) Intersect(o *TileBBoxPyramid) {
	for z := range p.levels {
		p.levels[z].Intersect(o.levels[z])
	}
}

// IterLevels yields the non-empty levels ascending by zoom.
func (p *TileBBoxPyramid) IterLevels() []TileBBox {
	levels := make([]TileBBox, 0, len(p.levels))
	for _, b := range p.levels {
		if !b.IsEmpty() {
			levels = append(levels, b)
		}
	}
	return levels
}

// IsEmpty reports whether no level has coverage.
func (p *TileBBoxPyramid) IsEmpty() bool {
	for _, b := range p.levels {
		if !b.IsEmpty() {
			return false
		}
	}
	return true
}

// Count returns the total number of covered tiles.
func (p *TileBBoxPyramid) Count() uint64 {
	var n uint64
	for _, b := range p.levels {
		n += b.Count()
	}
	return n
}

// ZoomMin returns the lowest non-empty zoom level, or 0.
func (p *TileBBoxPyramid) ZoomMin() uint8 {
	for z, b := range p.levels {
		if !b.IsEmpty() {
			return uint8(z)
		}
	}
	return 0
}

// ZoomMax returns the highest non-empty zoom level, or 0.
func (p *TileBBoxPyramid) ZoomMax() uint8 {
	max := uint8(0)
	for z, b := range p.levels {
		if !b.IsEmpty() {
			max = uint8(z)
		}
	}
	return max
}

// LimitZoom drops coverage outside [zoomMin, zoomMax].
func (p *TileBBoxPyramid) LimitZoom(zoomMin, zoomMax uint8) {
	for z := range p.levels {
		if uint8(z) < zoomMin || uint8(z) > zoomMax {
			p.levels[z] = NewEmptyTileBBox(uint8(z))
		}
	}
}

// ToGeoBBox returns the geographic hull over all non-empty levels.
func (p *TileBBoxPyramid) ToGeoBBox() GeoBBox {
	var geo GeoBBox
	first := true
	for _, b := range p.levels {
		if b.IsEmpty() {
			continue
		}
		g := b.ToGeoBBox()
		if first {
			geo = g
			first = false
			continue
		}
		if g.West < geo.West {
			geo.West = g.West
		}
		if g.South < geo.South {
			geo.South = g.South
		}
		if g.East > geo.East {
			geo.East = g.East
		}
		if g.North > geo.North {
			geo.North = g.North
		}
	}
	return geo
}

func (p *TileBBoxPyramid) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, b := range p.IterLevels() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.String())
	}
	sb.WriteString("]")
	return sb.String()
}
