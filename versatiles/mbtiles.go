package versatiles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"zombiezen.com/go/sqlite"
)

// MBTilesReader reads an MBTiles archive: a SQLite database with a
// metadata table and a tiles table in TMS row order. Coordinates are
// presented in tile-map convention; rows are flipped on every query.
type MBTilesReader struct {
	name       string
	conn       *sqlite.Conn
	mu         sync.Mutex
	parameters TilesReaderParameters
	metadata   map[string]string
}

// OpenMBTilesReader opens the database read-only, infers format and
// compression from the first tile's magic bytes and computes the bbox
// pyramid with one aggregated query per zoom.
func OpenMBTilesReader(path string) (*MBTilesReader, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	reader := &MBTilesReader{name: path, conn: conn}
	if err := reader.load(); err != nil {
		conn.Close()
		return nil, err
	}
	return reader, nil
}

func (r *MBTilesReader) load() error {
	metadata := make(map[string]string)
	{
		stmt, _, err := r.conn.PrepareTransient("SELECT name, value FROM metadata")
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Finalize()
		for {
			row, err := stmt.Step()
			if err != nil {
				return fmt.Errorf("failed to step statement: %w", err)
			}
			if !row {
				break
			}
			metadata[stmt.ColumnText(0)] = stmt.ColumnText(1)
		}
	}
	r.metadata = metadata

	format, compression, err := r.probeFirstTile()
	if err != nil {
		return err
	}

	pyramid := NewTileBBoxPyramid()
	{
		stmt, _, err := r.conn.PrepareTransient(
			"SELECT zoom_level, min(tile_column), max(tile_column), min(tile_row), max(tile_row) FROM tiles GROUP BY zoom_level")
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Finalize()
		for {
			row, err := stmt.Step()
			if err != nil {
				return fmt.Errorf("failed to step statement: %w", err)
			}
			if !row {
				break
			}
			z := uint8(stmt.ColumnInt64(0))
			xMin := uint32(stmt.ColumnInt64(1))
			xMax := uint32(stmt.ColumnInt64(2))
			rowMin := uint32(stmt.ColumnInt64(3))
			rowMax := uint32(stmt.ColumnInt64(4))
			maxRow := uint32(1)<<z - 1
			bbox, err := NewTileBBox(z, xMin, maxRow-rowMax, xMax, maxRow-rowMin)
			if err != nil {
				return err
			}
			pyramid.SetLevel(bbox)
		}
	}

	r.parameters = NewTilesReaderParameters(pyramid, format, compression)
	return nil
}

func (r *MBTilesReader) probeFirstTile() (TileFormat, TileCompression, error) {
	stmt, _, err := r.conn.PrepareTransient("SELECT tile_data FROM tiles LIMIT 1")
	if err != nil {
		return UnknownFormat, NoCompression, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Finalize()

	row, err := stmt.Step()
	if err != nil {
		return UnknownFormat, NoCompression, fmt.Errorf("failed to step statement: %w", err)
	}
	if !row {
		return BIN, NoCompression, nil
	}

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(stmt.ColumnReader(0)); err != nil {
		return UnknownFormat, NoCompression, err
	}
	data := Blob(raw.Bytes())

	compression := DetectCompression(data)
	format := DetectTileFormat(data)
	if format == BIN {
		// vector and JSON tiles have no magic; trust the metadata table
		if name, ok := r.metadata["format"]; ok {
			if parsed, err := TileFormatFromString(name); err == nil {
				format = parsed
			}
		} else if compression != NoCompression {
			format = PBF
		}
	}
	return format, compression, nil
}

func (r *MBTilesReader) Name() string {
	return r.name
}

func (r *MBTilesReader) ContainerName() string {
	return "mbtiles"
}

func (r *MBTilesReader) Parameters() *TilesReaderParameters {
	return &r.parameters
}

func (r *MBTilesReader) OverrideCompression(compression TileCompression) {
	r.parameters.TileCompression = compression
}

// Meta synthesizes a JSON object from the metadata rows.
func (r *MBTilesReader) Meta() (Blob, error) {
	if len(r.metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(r.metadata)
}

// TileData fetches one tile, flipping the row to TMS before querying.
func (r *MBTilesReader) TileData(_ context.Context, coord TileCoord3) (Blob, error) {
	if err := coord.Check(); err != nil {
		return nil, err
	}
	flippedY := uint32(1)<<coord.Z - 1 - coord.Y

	r.mu.Lock()
	defer r.mu.Unlock()

	stmt := r.conn.Prep("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	stmt.BindInt64(1, int64(coord.Z))
	stmt.BindInt64(2, int64(coord.X))
	stmt.BindInt64(3, int64(flippedY))
	defer func() {
		stmt.ClearBindings()
		stmt.Reset()
	}()

	row, err := stmt.Step()
	if err != nil {
		return nil, fmt.Errorf("failed to step statement: %w", err)
	}
	if !row {
		return nil, nil
	}
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(stmt.ColumnReader(0)); err != nil {
		return nil, err
	}
	return raw.Bytes(), nil
}

// BBoxTileStream first assembles the sorted id set of present tiles
// with one query, then fetches the payloads with bounded parallelism.
func (r *MBTilesReader) BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream {
	tileset, err := r.coordSet(bbox)
	if err != nil {
		s, _ := newTileStream(ctx, false, 1)
		s.fail(err)
		close(s.ch)
		return s
	}

	coords := make([]TileCoord3, 0, tileset.GetCardinality())
	it := tileset.Iterator()
	for it.HasNext() {
		coords = append(coords, IDToCoord(it.Next()))
	}

	return NewTileStreamFromCoords(ctx, coords, DefaultStreamParallelism, func(ctx context.Context, coord TileCoord3) (Blob, error) {
		return r.TileData(ctx, coord)
	})
}

func (r *MBTilesReader) coordSet(bbox TileBBox) (*roaring64.Bitmap, error) {
	if bbox.IsEmpty() {
		return roaring64.New(), nil
	}
	flippedMax := uint32(1)<<bbox.Level - 1 - bbox.YMin
	flippedMin := uint32(1)<<bbox.Level - 1 - bbox.YMax

	r.mu.Lock()
	defer r.mu.Unlock()

	tileset := roaring64.New()
	stmt := r.conn.Prep(
		"SELECT tile_column, tile_row FROM tiles WHERE zoom_level = ? AND tile_column >= ? AND tile_column <= ? AND tile_row >= ? AND tile_row <= ?")
	stmt.BindInt64(1, int64(bbox.Level))
	stmt.BindInt64(2, int64(bbox.XMin))
	stmt.BindInt64(3, int64(bbox.XMax))
	stmt.BindInt64(4, int64(flippedMin))
	stmt.BindInt64(5, int64(flippedMax))
	defer func() {
		stmt.ClearBindings()
		stmt.Reset()
	}()

	for {
		row, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("failed to step statement: %w", err)
		}
		if !row {
			break
		}
		x := uint32(stmt.ColumnInt64(0))
		flippedY := uint32(stmt.ColumnInt64(1))
		y := uint32(1)<<bbox.Level - 1 - flippedY
		tileset.Add(CoordToID(TileCoord3{Z: bbox.Level, X: x, Y: y}))
	}
	return tileset, nil
}

// Close releases the database connection.
func (r *MBTilesReader) Close() error {
	return r.conn.Close()
}

// MBTilesWriter exists to round out the container registry; the write
// path is a deliberate non-goal.
type MBTilesWriter struct{}

func NewMBTilesWriter() *MBTilesWriter {
	return &MBTilesWriter{}
}

func (w *MBTilesWriter) WriteToWriter(_ context.Context, _ TilesReader, _ *ValueWriter) error {
	return unsupportedf("conversion to mbtiles")
}
