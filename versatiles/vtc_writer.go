package versatiles

import "context"

// VTCWriterOptions configures a container writer. The zero value keeps
// the source's compression and passes tile bytes through.
type VTCWriterOptions struct {
	// TileCompression overrides the archive compression; nil keeps the
	// compression the source declares.
	TileCompression *TileCompression

	// ForceRecompress transcodes every tile to the archive compression
	// even when the source already declares it. Without it, matching
	// compressions pass bytes through.
	ForceRecompress bool
}

// VTCWriter writes a versatiles container in one pass over the source's
// bbox pyramid. Writers are single-use.
type VTCWriter struct {
	opts VTCWriterOptions
}

func NewVTCWriter(opts VTCWriterOptions) *VTCWriter {
	return &VTCWriter{opts: opts}
}

// WriteToWriter drains the reader into the byte sink: header, metadata,
// block payloads with their tile indexes, block directory, then the
// header again with the final ranges.
func (w *VTCWriter) WriteToWriter(ctx context.Context, reader TilesReader, vw *ValueWriter) error {
	parameters := reader.Parameters()

	compression := parameters.TileCompression
	if w.opts.TileCompression != nil {
		compression = *w.opts.TileCompression
	}
	transcode := w.opts.ForceRecompress || compression != parameters.TileCompression
	sourceCompression := parameters.TileCompression

	header := &vtcHeader{
		TileFormat:      parameters.TileFormat,
		TileCompression: compression,
		ZoomMin:         parameters.BBoxPyramid.ZoomMin(),
		ZoomMax:         parameters.BBoxPyramid.ZoomMax(),
		BBox:            parameters.BBoxPyramid.ToGeoBBox(),
	}

	// placeholder header, rewritten once the layout is known
	if _, err := vw.Write(make([]byte, vtcHeaderLength)); err != nil {
		return err
	}

	meta, err := reader.Meta()
	if err != nil {
		return err
	}
	if meta != nil {
		compressed, err := Compress(meta, compression)
		if err != nil {
			return err
		}
		if header.MetaRange, err = vw.WriteBlob(compressed); err != nil {
			return err
		}
	}

	directory := newBlockDirectory()
	for _, level := range parameters.BBoxPyramid.IterLevels() {
		if err := w.writeLevel(ctx, reader, vw, directory, level, compression, sourceCompression, transcode); err != nil {
			return err
		}
	}

	directoryBytes, err := directory.serialize(compression)
	if err != nil {
		return err
	}
	directoryRange, err := vw.WriteBlob(directoryBytes)
	if err != nil {
		return err
	}
	if directory.len() == 0 {
		directoryRange = ByteRange{Offset: directoryRange.Offset}
	}
	header.BlockIndexRange = directoryRange

	headerBytes, err := header.serialize()
	if err != nil {
		return err
	}
	return vw.Rewrite(0, headerBytes)
}

// writeLevel partitions one zoom level into 256x256 block cells in
// row-major order and writes each cell that has tiles.
func (w *VTCWriter) writeLevel(
	ctx context.Context, reader TilesReader, vw *ValueWriter, directory *blockDirectory,
	level TileBBox, compression, sourceCompression TileCompression, transcode bool,
) error {
	for blockY := level.YMin >> 8; blockY <= level.YMax>>8; blockY++ {
		for blockX := level.XMin >> 8; blockX <= level.XMax>>8; blockX++ {
			cell := TileBBox{
				Level: level.Level,
				XMin:  blockX << 8,
				YMin:  blockY << 8,
				XMax:  blockX<<8 + vtcBlockSize - 1,
				YMax:  blockY<<8 + vtcBlockSize - 1,
			}
			cell.Intersect(level)
			if cell.IsEmpty() {
				continue
			}
			if err := w.writeBlock(ctx, reader, vw, directory, cell, compression, sourceCompression, transcode); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *VTCWriter) writeBlock(
	ctx context.Context, reader TilesReader, vw *ValueWriter, directory *blockDirectory,
	cell TileBBox, compression, sourceCompression TileCompression, transcode bool,
) error {
	entry := blockEntry{
		blockKey: blockKey{Z: cell.Level, BlockX: cell.XMin >> 8, BlockY: cell.YMin >> 8},
		XMinTile: uint8(cell.XMin & 0xff),
		YMinTile: uint8(cell.YMin & 0xff),
		XMaxTile: uint8(cell.XMax & 0xff),
		YMaxTile: uint8(cell.YMax & 0xff),
	}

	stream := reader.BBoxTileStream(ctx, cell)
	defer stream.Close()
	if transcode {
		stream = stream.MapBlob(ctx, func(_ context.Context, _ TileCoord3, data Blob) (Blob, error) {
			raw, err := Decompress(data, sourceCompression)
			if err != nil {
				return nil, err
			}
			return Compress(raw, compression)
		})
	}

	index := make([]ByteRange, entry.tileCount())
	tilesStart := vw.Position()
	present := false

	for {
		tile, ok := stream.Next(ctx)
		if !ok {
			break
		}
		slot := entry.slot(uint8(tile.Coord.X&0xff), uint8(tile.Coord.Y&0xff))
		index[slot] = ByteRange{Offset: vw.Position() - tilesStart, Length: tile.Data.Len()}
		if _, err := vw.Write(tile.Data); err != nil {
			return err
		}
		present = true
	}
	if err := stream.Err(); err != nil {
		return err
	}
	if !present {
		return nil
	}
	entry.TileRange = ByteRange{Offset: tilesStart, Length: vw.Position() - tilesStart}

	indexBytes, err := serializeTileIndex(index, compression)
	if err != nil {
		return err
	}
	if entry.IndexRange, err = vw.WriteBlob(indexBytes); err != nil {
		return err
	}
	return directory.add(entry)
}
