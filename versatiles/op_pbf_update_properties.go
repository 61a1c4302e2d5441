package versatiles

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/paulmach/orb/encoding/mvt"
	"go.uber.org/zap"
)

// pbfUpdateProperties rewrites feature properties of one vector-tile
// layer from a CSV lookup table keyed by a feature id field. A tile
// whose rewrite fails is dropped with its coordinate logged; with
// strict=true the whole stream aborts instead.
type pbfUpdateProperties struct {
	input   TilesReader
	logger  *zap.Logger
	layer   string
	idField string
	rows    map[string]map[string]interface{}
	strict  bool
	replace bool
}

func buildPBFUpdateProperties(_ context.Context, c *Composer, node VDLNode, input TilesReader) (TilesReader, error) {
	if input == nil {
		return nil, configf("operation 'pbf_update_properties' needs an input")
	}
	if input.Parameters().TileFormat != PBF {
		return nil, configf("operation 'pbf_update_properties' needs vector tiles, got %q", input.Parameters().TileFormat)
	}

	idField, err := node.PropertyString("id_field")
	if err != nil {
		return nil, err
	}
	dataFile, err := node.PropertyString("data")
	if err != nil {
		return nil, err
	}
	layer, err := node.PropertyStringOpt("layer", "")
	if err != nil {
		return nil, err
	}
	strict, err := node.PropertyBool("strict")
	if err != nil {
		return nil, err
	}
	replace, err := node.PropertyBool("replace_properties")
	if err != nil {
		return nil, err
	}

	rows, err := loadLookupCSV(dataFile, idField)
	if err != nil {
		return nil, err
	}

	return &pbfUpdateProperties{
		input:   input,
		logger:  c.logger,
		layer:   layer,
		idField: idField,
		rows:    rows,
		strict:  strict,
		replace: replace,
	}, nil
}

// loadLookupCSV reads a header-labelled CSV and indexes its rows by the
// id column.
func loadLookupCSV(path, idField string) (map[string]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, configf("failed reading %q: %v", path, err)
	}
	if len(records) == 0 {
		return nil, configf("data source %q is empty", path)
	}

	header := records[0]
	idColumn := -1
	for i, name := range header {
		if name == idField {
			idColumn = i
		}
	}
	if idColumn < 0 {
		return nil, configf("data source %q has no column '%s'", path, idField)
	}

	rows := make(map[string]map[string]interface{}, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, configf("data source %q has a ragged row", path)
		}
		properties := make(map[string]interface{}, len(header)-1)
		for i, value := range record {
			if i == idColumn {
				continue
			}
			properties[header[i]] = value
		}
		rows[record[idColumn]] = properties
	}
	return rows, nil
}

func (o *pbfUpdateProperties) Name() string {
	return o.input.Name()
}

func (o *pbfUpdateProperties) ContainerName() string {
	return "pipeline"
}

// Parameters pass through: the rewrite recompresses to the declared
// compression.
func (o *pbfUpdateProperties) Parameters() *TilesReaderParameters {
	return o.input.Parameters()
}

func (o *pbfUpdateProperties) OverrideCompression(compression TileCompression) {
	o.input.OverrideCompression(compression)
}

func (o *pbfUpdateProperties) Meta() (Blob, error) {
	return o.input.Meta()
}

func (o *pbfUpdateProperties) TileData(ctx context.Context, coord TileCoord3) (Blob, error) {
	data, err := o.input.TileData(ctx, coord)
	if err != nil || data == nil {
		return nil, err
	}
	updated, err := o.updateTile(data)
	if err != nil {
		return nil, corruptf("tile %s: %v", coord, err)
	}
	return updated, nil
}

func (o *pbfUpdateProperties) BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream {
	stream := o.input.BBoxTileStream(ctx, bbox)
	out := stream.MapBlob(ctx, func(_ context.Context, coord TileCoord3, data Blob) (Blob, error) {
		updated, err := o.updateTile(data)
		if err != nil {
			return nil, corruptf("tile %s: %v", coord, err)
		}
		return updated, nil
	})
	out.FailOnTileError = o.strict
	out.OnTileError = func(coord TileCoord3, err error) {
		o.logger.Warn("dropping tile", zap.String("coord", coord.String()), zap.Error(err))
	}
	return out
}

// updateTile decompresses, rewrites matching features and re-encodes.
// Tiles with no matching feature come back byte-identical.
func (o *pbfUpdateProperties) updateTile(data Blob) (Blob, error) {
	compression := o.input.Parameters().TileCompression
	raw, err := Decompress(data, compression)
	if err != nil {
		return nil, err
	}
	layers, err := mvt.Unmarshal(raw)
	if err != nil {
		return nil, err
	}

	changed := false
	for _, layer := range layers {
		if o.layer != "" && layer.Name != o.layer {
			continue
		}
		for _, feature := range layer.Features {
			id, ok := feature.Properties[o.idField]
			if !ok {
				continue
			}
			row, ok := o.rows[propertyKey(id)]
			if !ok {
				continue
			}
			if o.replace {
				feature.Properties = map[string]interface{}{o.idField: id}
			}
			for key, value := range row {
				feature.Properties[key] = value
			}
			changed = true
		}
	}
	if !changed {
		return data, nil
	}

	encoded, err := mvt.Marshal(layers)
	if err != nil {
		return nil, err
	}
	return Compress(encoded, compression)
}

// propertyKey renders a feature id the way it appears in the CSV.
func propertyKey(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return ""
	}
}
