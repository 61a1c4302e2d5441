package versatiles

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// ProbeDepth selects how deep probe introspection digs.
type ProbeDepth int

const (
	// ProbeMeta prints the reader identity, metadata and parameters.
	ProbeMeta ProbeDepth = iota
	// ProbeContainer adds container internals such as block counts.
	ProbeContainer
	// ProbeTiles adds per-zoom tile counts.
	ProbeTiles
	// ProbeContents adds per-zoom payload sizes.
	ProbeContents
)

// ProbeDepthFromString parses the CLI probe level.
func ProbeDepthFromString(s string) (ProbeDepth, error) {
	switch s {
	case "meta", "":
		return ProbeMeta, nil
	case "container":
		return ProbeContainer, nil
	case "tiles":
		return ProbeTiles, nil
	case "contents":
		return ProbeContents, nil
	default:
		return ProbeMeta, configf("probe level %q unknown", s)
	}
}

// Probe prints archive introspection at the requested depth.
func Probe(ctx context.Context, w io.Writer, reader TilesReader, depth ProbeDepth) error {
	parameters := reader.Parameters()

	fmt.Fprintln(w, "meta_data:")
	fmt.Fprintf(w, "  name: %s\n", reader.Name())
	fmt.Fprintf(w, "  container: %s\n", reader.ContainerName())
	meta, err := reader.Meta()
	if err != nil {
		return err
	}
	if meta != nil {
		fmt.Fprintf(w, "  meta: %s\n", meta)
	} else {
		fmt.Fprintln(w, "  meta: none")
	}

	fmt.Fprintln(w, "parameters:")
	fmt.Fprintf(w, "  tile format: %s\n", parameters.TileFormat)
	fmt.Fprintf(w, "  tile compression: %s\n", parameters.TileCompression)
	geo := parameters.BBoxPyramid.ToGeoBBox()
	fmt.Fprintf(w, "  bbox: [%.4f, %.4f, %.4f, %.4f]\n", geo.West, geo.South, geo.East, geo.North)
	fmt.Fprintln(w, "  bbox_pyramid:")
	for _, level := range parameters.BBoxPyramid.IterLevels() {
		fmt.Fprintf(w, "    %s\n", level)
	}

	if depth >= ProbeContainer {
		if err := probeContainer(w, reader); err != nil {
			return err
		}
	}
	if depth >= ProbeTiles {
		if err := probeTiles(ctx, w, reader, depth); err != nil {
			return err
		}
	}
	return nil
}

func probeContainer(w io.Writer, reader TilesReader) error {
	fmt.Fprintln(w, "container:")
	vtc, ok := reader.(*VTCReader)
	if !ok {
		fmt.Fprintln(w, "  deep container probing is not implemented for this container format")
		return nil
	}
	var payloadBytes, indexBytes uint64
	for _, entry := range vtc.directory.entries {
		payloadBytes += entry.TileRange.Length
		indexBytes += entry.IndexRange.Length
	}
	fmt.Fprintf(w, "  blocks: %d\n", vtc.directory.len())
	fmt.Fprintf(w, "  tile payload: %s\n", humanize.Bytes(payloadBytes))
	fmt.Fprintf(w, "  tile indexes: %s\n", humanize.Bytes(indexBytes))
	return nil
}

func probeTiles(ctx context.Context, w io.Writer, reader TilesReader, depth ProbeDepth) error {
	fmt.Fprintln(w, "tiles:")
	for _, level := range reader.Parameters().BBoxPyramid.IterLevels() {
		stream := reader.BBoxTileStream(ctx, level)
		var count, bytes uint64
		for {
			tile, ok := stream.Next(ctx)
			if !ok {
				break
			}
			count++
			bytes += tile.Data.Len()
		}
		if err := stream.Err(); err != nil {
			return err
		}
		if depth >= ProbeContents {
			fmt.Fprintf(w, "  zoom %d: %d tiles, %s\n", level.Level, count, humanize.Bytes(bytes))
		} else {
			fmt.Fprintf(w, "  zoom %d: %d tiles\n", level.Level, count)
		}
	}
	return nil
}
