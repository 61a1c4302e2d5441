package versatiles

import (
	"context"
	"sync"
)

const tileIndexCacheSize = 64

// tileIndexCache is a bounded LRU of decoded block tile indexes. It is
// shared between stream workers, so every access takes the mutex.
type tileIndexCache struct {
	mu      sync.Mutex
	cache   map[blockKey]*tileIndex
	order   []blockKey
	maxSize int
}

func newTileIndexCache(maxSize int) *tileIndexCache {
	if maxSize <= 0 {
		maxSize = tileIndexCacheSize
	}
	return &tileIndexCache{
		cache:   make(map[blockKey]*tileIndex, maxSize),
		order:   make([]blockKey, 0, maxSize),
		maxSize: maxSize,
	}
}

func (c *tileIndexCache) get(key blockKey) *tileIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index, ok := c.cache[key]; ok {
		c.touch(key)
		return index
	}
	return nil
}

func (c *tileIndexCache) put(key blockKey, index *tileIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[key]; ok {
		c.touch(key)
		return
	}
	for len(c.cache) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}
	c.cache[key] = index
	c.order = append(c.order, key)
}

func (c *tileIndexCache) touch(key blockKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}

// VTCReader reads a versatiles container from any byte source.
type VTCReader struct {
	src        ByteSource
	header     *vtcHeader
	directory  *blockDirectory
	parameters TilesReaderParameters
	indexes    *tileIndexCache
}

// OpenVTCReader validates the header, loads the block directory and
// derives the bbox pyramid from it. The reader takes ownership of the
// byte source.
func OpenVTCReader(ctx context.Context, src ByteSource) (*VTCReader, error) {
	reader, err := openVTCReader(ctx, src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return reader, nil
}

func openVTCReader(ctx context.Context, src ByteSource) (*VTCReader, error) {
	if src.Len() < vtcHeaderLength {
		return nil, corruptf("file of %d bytes is too short for a header", src.Len())
	}
	headerBytes, err := src.ReadRange(ctx, ByteRange{Offset: 0, Length: vtcHeaderLength})
	if err != nil {
		return nil, err
	}
	header, err := deserializeVTCHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	if header.MetaRange.End() > src.Len() || header.BlockIndexRange.End() > src.Len() {
		return nil, corruptf("header ranges exceed file length %d", src.Len())
	}

	directory := newBlockDirectory()
	if !header.BlockIndexRange.IsEmpty() {
		directoryBytes, err := src.ReadRange(ctx, header.BlockIndexRange)
		if err != nil {
			return nil, err
		}
		directory, err = deserializeBlockDirectory(directoryBytes, header.TileCompression, src.Len())
		if err != nil {
			return nil, err
		}
	}

	pyramid := NewTileBBoxPyramid()
	for _, e := range directory.entries {
		base := TileCoord3{
			Z: e.Z,
			X: e.BlockX<<8 + uint32(e.XMinTile),
			Y: e.BlockY<<8 + uint32(e.YMinTile),
		}
		pyramid.IncludeCoord(base)
		pyramid.IncludeCoord(TileCoord3{
			Z: e.Z,
			X: e.BlockX<<8 + uint32(e.XMaxTile),
			Y: e.BlockY<<8 + uint32(e.YMaxTile),
		})
	}

	return &VTCReader{
		src:       src,
		header:    header,
		directory: directory,
		parameters: NewTilesReaderParameters(
			pyramid, header.TileFormat, header.TileCompression,
		),
		indexes: newTileIndexCache(tileIndexCacheSize),
	}, nil
}

func (r *VTCReader) Name() string {
	return r.src.Name()
}

func (r *VTCReader) ContainerName() string {
	return "versatiles"
}

func (r *VTCReader) Parameters() *TilesReaderParameters {
	return &r.parameters
}

func (r *VTCReader) OverrideCompression(compression TileCompression) {
	r.parameters.TileCompression = compression
}

// Meta returns the metadata blob, decompressed.
func (r *VTCReader) Meta() (Blob, error) {
	if r.header.MetaRange.IsEmpty() {
		return nil, nil
	}
	data, err := r.src.ReadRange(context.Background(), r.header.MetaRange)
	if err != nil {
		return nil, err
	}
	return Decompress(data, r.header.TileCompression)
}

// blockIndex fetches (and caches) the tile index of a block.
func (r *VTCReader) blockIndex(ctx context.Context, entry *blockEntry) (*tileIndex, error) {
	if index := r.indexes.get(entry.blockKey); index != nil {
		return index, nil
	}
	data, err := r.src.ReadRange(ctx, entry.IndexRange)
	if err != nil {
		return nil, err
	}
	index, err := deserializeTileIndex(data, r.header.TileCompression, entry.tileCount())
	if err != nil {
		return nil, err
	}
	for _, rng := range index.entries {
		if rng.IsEmpty() {
			continue
		}
		if rng.End() > entry.TileRange.Length {
			return nil, corruptf("tile range %s exceeds block payload of %d bytes", rng, entry.TileRange.Length)
		}
	}
	r.indexes.put(entry.blockKey, index)
	return index, nil
}

// TileData returns the stored tile bytes without transcoding.
func (r *VTCReader) TileData(ctx context.Context, coord TileCoord3) (Blob, error) {
	if err := coord.Check(); err != nil {
		return nil, err
	}
	entry := r.directory.get(blockKeyOfCoord(coord))
	if entry == nil {
		return nil, nil
	}
	lx := uint8(coord.X & 0xff)
	ly := uint8(coord.Y & 0xff)
	if !entry.containsLocal(lx, ly) {
		return nil, nil
	}
	index, err := r.blockIndex(ctx, entry)
	if err != nil {
		return nil, err
	}
	rng := index.entries[entry.slot(lx, ly)]
	if rng.IsEmpty() {
		return nil, nil
	}
	return r.src.ReadRange(ctx, ByteRange{
		Offset: entry.TileRange.Offset + rng.Offset,
		Length: rng.Length,
	})
}

// BBoxTileStream streams the present tiles of the bbox. Per block the
// tile payload is fetched as one coalesced range read and sliced in
// memory.
func (r *VTCReader) BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream {
	s, ctx := newTileStream(ctx, false, DefaultStreamParallelism)
	go func() {
		defer close(s.ch)
		for _, entry := range r.directory.entries {
			if entry.Z != bbox.Level {
				continue
			}
			if err := r.streamBlock(ctx, s, entry, bbox); err != nil {
				s.fail(err)
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return s
}

func (r *VTCReader) streamBlock(ctx context.Context, s *TileStream, entry blockEntry, bbox TileBBox) error {
	blockBBox := TileBBox{
		Level: entry.Z,
		XMin:  entry.BlockX<<8 + uint32(entry.XMinTile),
		YMin:  entry.BlockY<<8 + uint32(entry.YMinTile),
		XMax:  entry.BlockX<<8 + uint32(entry.XMaxTile),
		YMax:  entry.BlockY<<8 + uint32(entry.YMaxTile),
	}
	blockBBox.Intersect(bbox)
	if blockBBox.IsEmpty() {
		return nil
	}

	index, err := r.blockIndex(ctx, &entry)
	if err != nil {
		return err
	}
	payload, err := r.src.ReadRange(ctx, entry.TileRange)
	if err != nil {
		return err
	}

	for _, coord := range blockBBox.IterCoords() {
		rng := index.entries[entry.slot(uint8(coord.X&0xff), uint8(coord.Y&0xff))]
		if rng.IsEmpty() {
			continue
		}
		if !s.send(ctx, Tile{Coord: coord, Data: payload[rng.Offset:rng.End()]}) {
			return nil
		}
	}
	return nil
}

// Close releases the byte source.
func (r *VTCReader) Close() error {
	return r.src.Close()
}
