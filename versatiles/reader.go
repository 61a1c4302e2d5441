package versatiles

import "context"

// TilesReaderParameters declares what a reader emits: coverage, payload
// format and the compression every tile is delivered in.
type TilesReaderParameters struct {
	BBoxPyramid     TileBBoxPyramid
	TileFormat      TileFormat
	TileCompression TileCompression
}

func NewTilesReaderParameters(pyramid TileBBoxPyramid, format TileFormat, compression TileCompression) TilesReaderParameters {
	return TilesReaderParameters{
		BBoxPyramid:     pyramid,
		TileFormat:      format,
		TileCompression: compression,
	}
}

// TilesReader is an open tile archive. Implementations are safe for
// concurrent use and immutable except for OverrideCompression.
type TilesReader interface {
	// Name identifies the source, e.g. the filename.
	Name() string

	// ContainerName identifies the archive format, e.g. "versatiles".
	ContainerName() string

	// Parameters declares coverage, format and compression.
	Parameters() *TilesReaderParameters

	// OverrideCompression retags the declared compression without
	// transcoding. Downstream reconciles.
	OverrideCompression(compression TileCompression)

	// Meta returns the metadata blob, always uncompressed; nil when the
	// archive carries none.
	Meta() (Blob, error)

	// TileData returns one tile, compressed and formatted exactly as
	// declared by Parameters. Absent tiles are (nil, nil).
	TileData(ctx context.Context, coord TileCoord3) (Blob, error)

	// BBoxTileStream streams every present tile inside the bbox.
	BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream
}

// TilesWriter drains one reader into a byte sink, producing an archive.
// Writers are single-use; the outcome is all-or-nothing.
type TilesWriter interface {
	WriteToWriter(ctx context.Context, reader TilesReader, writer *ValueWriter) error
}

// defaultBBoxTileStream derives a bbox stream from TileData; container
// readers override this with something block-aware.
func defaultBBoxTileStream(ctx context.Context, reader TilesReader, bbox TileBBox) *TileStream {
	return NewTileStreamFromCoords(ctx, bbox.IterCoords(), DefaultStreamParallelism, func(ctx context.Context, coord TileCoord3) (Blob, error) {
		return reader.TileData(ctx, coord)
	})
}
