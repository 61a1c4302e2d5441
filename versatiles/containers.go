package versatiles

import (
	"context"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// OpenReader opens any supported archive, dispatching on the filename
// extension: .versatiles, .mbtiles or .tar. Remote URIs work for the
// range-addressable formats.
func OpenReader(ctx context.Context, uri string) (TilesReader, error) {
	switch {
	case strings.HasSuffix(uri, ".versatiles"):
		src, err := OpenByteSource(ctx, uri)
		if err != nil {
			return nil, err
		}
		return OpenVTCReader(ctx, src)
	case strings.HasSuffix(uri, ".mbtiles"):
		return OpenMBTilesReader(uri)
	case strings.HasSuffix(uri, ".tar"):
		src, err := OpenByteSource(ctx, uri)
		if err != nil {
			return nil, err
		}
		return OpenTarReader(ctx, src)
	default:
		return nil, unsupportedf("extension of %q unknown", uri)
	}
}

// NewWriterForPath picks the writer for an output filename.
func NewWriterForPath(path string, opts VTCWriterOptions) (TilesWriter, error) {
	switch {
	case strings.HasSuffix(path, ".versatiles"):
		return NewVTCWriter(opts), nil
	case strings.HasSuffix(path, ".tar"):
		return NewTarWriter(), nil
	case strings.HasSuffix(path, ".mbtiles"):
		return NewMBTilesWriter(), nil
	default:
		return nil, unsupportedf("extension of %q unknown", path)
	}
}

// ConvertOptions steer a reader-to-archive conversion.
type ConvertOptions struct {
	// Compression overrides the target compression of a .versatiles
	// output; nil keeps the source's. The tar writer always keeps the
	// source's compression.
	Compression *TileCompression

	// ForceRecompress transcodes .versatiles output even when
	// compressions match. The tar writer ignores it.
	ForceRecompress bool

	// BBox limits the output to the tiles intersecting a geographic
	// rectangle.
	BBox *GeoBBox

	// ZoomMin/ZoomMax limit the output zoom range when non-nil.
	ZoomMin *uint8
	ZoomMax *uint8

	// Progress renders a progress bar on stderr.
	Progress bool
}

// Convert writes an archive at the output path from any reader.
func Convert(ctx context.Context, logger *zap.Logger, reader TilesReader, output string, opts ConvertOptions) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	writer, err := NewWriterForPath(output, VTCWriterOptions{
		TileCompression: opts.Compression,
		ForceRecompress: opts.ForceRecompress,
	})
	if err != nil {
		return err
	}

	source := limitReader(reader, opts)
	if opts.Progress {
		source = newProgressReader(source)
	}

	vw, err := NewFileValueWriter(output, bigEndian)
	if err != nil {
		return err
	}
	if err := writer.WriteToWriter(ctx, source, vw); err != nil {
		vw.Close()
		return err
	}
	total, err := vw.Close()
	if err != nil {
		return err
	}

	logger.Info("conversion finished",
		zap.String("output", output),
		zap.Uint64("bytes", total),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// limitReader applies bbox and zoom limits by shrinking the declared
// pyramid; tile access passes through.
func limitReader(reader TilesReader, opts ConvertOptions) TilesReader {
	if opts.BBox == nil && opts.ZoomMin == nil && opts.ZoomMax == nil {
		return reader
	}
	parameters := *reader.Parameters()
	if opts.ZoomMin != nil || opts.ZoomMax != nil {
		zoomMin := parameters.BBoxPyramid.ZoomMin()
		zoomMax := parameters.BBoxPyramid.ZoomMax()
		if opts.ZoomMin != nil {
			zoomMin = *opts.ZoomMin
		}
		if opts.ZoomMax != nil {
			zoomMax = *opts.ZoomMax
		}
		parameters.BBoxPyramid.LimitZoom(zoomMin, zoomMax)
	}
	if opts.BBox != nil {
		limit := NewTileBBoxPyramid()
		for z := uint8(0); z <= MaxZoom; z++ {
			limit.SetLevel(GeoToTileBBox(z, *opts.BBox))
		}
		parameters.BBoxPyramid.Intersect(&limit)
	}
	return &limitedReader{TilesReader: reader, parameters: parameters}
}

type limitedReader struct {
	TilesReader
	parameters TilesReaderParameters
}

func (r *limitedReader) Parameters() *TilesReaderParameters {
	return &r.parameters
}

// progressReader ticks a progress bar as its streams are drained.
type progressReader struct {
	TilesReader
	bar *progressbar.ProgressBar
}

func newProgressReader(reader TilesReader) TilesReader {
	total := reader.Parameters().BBoxPyramid.Count()
	return &progressReader{
		TilesReader: reader,
		bar:         progressbar.Default(int64(total)),
	}
}

func (r *progressReader) BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream {
	stream := r.TilesReader.BBoxTileStream(ctx, bbox)
	return stream.Filter(ctx, func(Tile) bool {
		r.bar.Add(1)
		return true
	})
}
