package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/versatiles-org/go-versatiles/versatiles"
)

var cli struct {
	Convert  ConvertCmd  `cmd:"" help:"Convert between archive formats."`
	Serve    ServeCmd    `cmd:"" help:"Serve the tiles of an archive over HTTP."`
	Probe    ProbeCmd    `cmd:"" help:"Print the internals of an archive."`
	Pipeline PipelineCmd `cmd:"" help:"Run a VDL pipeline file into an archive."`
}

// ConvertCmd converts any readable archive into a writable one.
type ConvertCmd struct {
	Input           string `arg:"" help:"Input archive (.versatiles, .mbtiles, .tar), local or remote."`
	Output          string `arg:"" help:"Output archive (.versatiles, .tar)."`
	Format          string `help:"Output tile format; must match the source." default:""`
	Compress        string `help:"Output tile compression: none, gzip, br, zstd." default:""`
	ForceRecompress bool   `help:"Transcode tiles even when compressions match."`
	BBox            string `help:"Limit output to a geographic bbox: west,south,east,north."`
	MinZoom         *uint8 `help:"Lowest zoom level to include."`
	MaxZoom         *uint8 `help:"Highest zoom level to include."`
}

func (c *ConvertCmd) Run(ctx context.Context, logger *zap.Logger) error {
	reader, err := versatiles.OpenReader(ctx, c.Input)
	if err != nil {
		return err
	}

	opts := versatiles.ConvertOptions{
		ForceRecompress: c.ForceRecompress,
		ZoomMin:         c.MinZoom,
		ZoomMax:         c.MaxZoom,
		Progress:        true,
	}
	if c.Format != "" {
		format, err := versatiles.TileFormatFromString(c.Format)
		if err != nil {
			return err
		}
		if format != reader.Parameters().TileFormat {
			return fmt.Errorf("%w: transcoding tile formats", versatiles.ErrUnsupported)
		}
	}
	if c.Compress != "" {
		compression, err := versatiles.TileCompressionFromString(c.Compress)
		if err != nil {
			return err
		}
		opts.Compression = &compression
	}
	if c.BBox != "" {
		bbox, err := parseGeoBBox(c.BBox)
		if err != nil {
			return err
		}
		opts.BBox = &bbox
	}
	return versatiles.Convert(ctx, logger, reader, c.Output, opts)
}

// ServeCmd serves tiles, TileJSON and metrics over HTTP.
type ServeCmd struct {
	Archive string `arg:"" help:"Archive to serve."`
	Addr    string `help:"Listen address." default:":8080"`
	Cors    string `help:"CORS allowed origin value." default:""`
	Public  string `help:"Public base URL used in TileJSON." default:""`
}

func (c *ServeCmd) Run(ctx context.Context, logger *zap.Logger) error {
	reader, err := versatiles.OpenReader(ctx, c.Archive)
	if err != nil {
		return err
	}
	return versatiles.NewServer(reader, logger, c.Public).ListenAndServe(c.Addr, c.Cors)
}

// ProbeCmd prints archive internals at increasing depth.
type ProbeCmd struct {
	Archive string `arg:"" help:"Archive to inspect."`
	Level   string `help:"Depth: meta, container, tiles or contents." default:"meta"`
}

func (c *ProbeCmd) Run(ctx context.Context, _ *zap.Logger) error {
	depth, err := versatiles.ProbeDepthFromString(c.Level)
	if err != nil {
		return err
	}
	reader, err := versatiles.OpenReader(ctx, c.Archive)
	if err != nil {
		return err
	}
	return versatiles.Probe(ctx, os.Stdout, reader, depth)
}

// PipelineCmd builds a composer pipeline from a VDL file and writes its
// output archive.
type PipelineCmd struct {
	VDL             string `arg:"" help:"Pipeline description file."`
	Output          string `arg:"" help:"Output archive."`
	Compress        string `help:"Output tile compression: none, gzip, br, zstd." default:""`
	ForceRecompress bool   `help:"Transcode tiles even when compressions match."`
}

func (c *PipelineCmd) Run(ctx context.Context, logger *zap.Logger) error {
	source, err := os.ReadFile(c.VDL)
	if err != nil {
		return err
	}
	composer := versatiles.NewComposer(nil, logger)
	reader, err := composer.BuildVDL(ctx, string(source))
	if err != nil {
		return err
	}

	opts := versatiles.ConvertOptions{ForceRecompress: c.ForceRecompress, Progress: true}
	if c.Compress != "" {
		compression, err := versatiles.TileCompressionFromString(c.Compress)
		if err != nil {
			return err
		}
		opts.Compression = &compression
	}
	return versatiles.Convert(ctx, logger, reader, c.Output, opts)
}

func parseGeoBBox(s string) (versatiles.GeoBBox, error) {
	var bbox versatiles.GeoBBox
	n, err := fmt.Sscanf(s, "%f,%f,%f,%f", &bbox.West, &bbox.South, &bbox.East, &bbox.North)
	if err != nil || n != 4 {
		return bbox, fmt.Errorf("%w: bad bbox %q", versatiles.ErrConfig, s)
	}
	return bbox, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	kctx := kong.Parse(&cli,
		kong.Name("versatiles"),
		kong.Description("Read, write and transform map-tile archives."),
		kong.UsageOnError(),
	)
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	if err := kctx.Run(logger); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(versatiles.ExitCode(err))
	}
}
