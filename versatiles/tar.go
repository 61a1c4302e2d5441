package versatiles

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TarReader reads tiles from an uncompressed TAR archive. Entries are
// named {z}/{x}/{y}.{ext}; a meta.json entry (optionally with a
// compression suffix) carries the metadata. The index over all entries
// is built once on open.
type TarReader struct {
	src        ByteSource
	tiles      map[TileCoord3]ByteRange
	metaRange  ByteRange
	metaComp   TileCompression
	parameters TilesReaderParameters
}

// byteSourceReader adapts a ByteSource to sequential io.Reader access
// for the one-time index scan.
type byteSourceReader struct {
	ctx context.Context
	src ByteSource
	pos uint64
}

func (r *byteSourceReader) Read(p []byte) (int, error) {
	remaining := r.src.Len() - r.pos
	if remaining == 0 {
		return 0, io.EOF
	}
	n := uint64(len(p))
	if n > remaining {
		n = remaining
	}
	data, err := r.src.ReadRange(r.ctx, ByteRange{Offset: r.pos, Length: n})
	if err != nil {
		return 0, err
	}
	r.pos += n
	copy(p, data)
	return int(n), nil
}

// OpenTarReader scans the archive and indexes every tile entry. The
// reader takes ownership of the byte source.
func OpenTarReader(ctx context.Context, src ByteSource) (*TarReader, error) {
	reader, err := openTarReader(ctx, src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return reader, nil
}

func openTarReader(ctx context.Context, src ByteSource) (*TarReader, error) {
	r := &TarReader{
		src:   src,
		tiles: make(map[TileCoord3]ByteRange),
	}

	scanner := &byteSourceReader{ctx: ctx, src: src}
	tr := tar.NewReader(scanner)

	format := UnknownFormat
	compression := NoCompression
	pyramid := NewTileBBoxPyramid()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, corruptf("tar: %v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		entry := ByteRange{Offset: scanner.pos, Length: uint64(hdr.Size)}
		name := strings.TrimPrefix(hdr.Name, "./")

		if base, comp := splitCompressionSuffix(name); base == "meta.json" {
			r.metaRange = entry
			r.metaComp = comp
			continue
		}

		coord, tileFormat, tileComp, err := parseTilePath(name)
		if err != nil {
			continue
		}
		if format == UnknownFormat {
			format = tileFormat
			compression = tileComp
		}
		r.tiles[coord] = entry
		pyramid.IncludeCoord(coord)
	}

	if format == UnknownFormat {
		format = BIN
	}
	r.parameters = NewTilesReaderParameters(pyramid, format, compression)
	return r, nil
}

func splitCompressionSuffix(name string) (string, TileCompression) {
	for _, comp := range []TileCompression{GzipCompression, BrotliCompression, ZstdCompression} {
		if strings.HasSuffix(name, comp.Extension()) {
			return strings.TrimSuffix(name, comp.Extension()), comp
		}
	}
	return name, NoCompression
}

// parseTilePath decodes {z}/{x}/{y}.{ext} with an optional compression
// suffix.
func parseTilePath(name string) (TileCoord3, TileFormat, TileCompression, error) {
	base, comp := splitCompressionSuffix(name)

	parts := strings.Split(base, "/")
	if len(parts) != 3 {
		return TileCoord3{}, UnknownFormat, NoCompression, fmt.Errorf("not a tile path: %q", name)
	}
	dot := strings.LastIndex(parts[2], ".")
	if dot < 0 {
		return TileCoord3{}, UnknownFormat, NoCompression, fmt.Errorf("not a tile path: %q", name)
	}
	format := TileFormatFromExtension(parts[2][dot+1:])
	if format == UnknownFormat {
		return TileCoord3{}, UnknownFormat, NoCompression, fmt.Errorf("unknown extension: %q", name)
	}

	z, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return TileCoord3{}, UnknownFormat, NoCompression, err
	}
	x, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return TileCoord3{}, UnknownFormat, NoCompression, err
	}
	y, err := strconv.ParseUint(parts[2][:dot], 10, 32)
	if err != nil {
		return TileCoord3{}, UnknownFormat, NoCompression, err
	}
	coord, err := NewTileCoord3(uint8(z), uint32(x), uint32(y))
	if err != nil {
		return TileCoord3{}, UnknownFormat, NoCompression, err
	}
	return coord, format, comp, nil
}

func (r *TarReader) Name() string {
	return r.src.Name()
}

func (r *TarReader) ContainerName() string {
	return "tar"
}

func (r *TarReader) Parameters() *TilesReaderParameters {
	return &r.parameters
}

func (r *TarReader) OverrideCompression(compression TileCompression) {
	r.parameters.TileCompression = compression
}

// Meta returns the meta.json entry, decompressed.
func (r *TarReader) Meta() (Blob, error) {
	if r.metaRange.IsEmpty() {
		return nil, nil
	}
	data, err := r.src.ReadRange(context.Background(), r.metaRange)
	if err != nil {
		return nil, err
	}
	return Decompress(data, r.metaComp)
}

func (r *TarReader) TileData(ctx context.Context, coord TileCoord3) (Blob, error) {
	rng, ok := r.tiles[coord]
	if !ok {
		return nil, nil
	}
	return r.src.ReadRange(ctx, rng)
}

func (r *TarReader) BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream {
	return defaultBBoxTileStream(ctx, r, bbox)
}

// Close releases the byte source.
func (r *TarReader) Close() error {
	return r.src.Close()
}

// TarWriter streams a TAR archive: the metadata entry first, then every
// tile in bbox-pyramid iteration order.
type TarWriter struct{}

func NewTarWriter() *TarWriter {
	return &TarWriter{}
}

func (w *TarWriter) WriteToWriter(ctx context.Context, reader TilesReader, vw *ValueWriter) error {
	parameters := reader.Parameters()
	tw := tar.NewWriter(vw)

	meta, err := reader.Meta()
	if err != nil {
		return err
	}
	if meta != nil {
		if err := writeTarEntry(tw, "meta.json", meta); err != nil {
			return err
		}
	}

	ext := "." + parameters.TileFormat.Extension() + parameters.TileCompression.Extension()
	for _, level := range parameters.BBoxPyramid.IterLevels() {
		stream := NewOrderedTileStreamFromCoords(ctx, level.IterCoords(), DefaultStreamParallelism, reader.TileData)
		for {
			tile, ok := stream.Next(ctx)
			if !ok {
				break
			}
			name := fmt.Sprintf("%d/%d/%d%s", tile.Coord.Z, tile.Coord.X, tile.Coord.Y, ext)
			if err := writeTarEntry(tw, name, tile.Data); err != nil {
				stream.Close()
				return err
			}
		}
		if err := stream.Err(); err != nil {
			return err
		}
	}
	return tw.Close()
}

func writeTarEntry(tw *tar.Writer, name string, data Blob) error {
	if err := tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
