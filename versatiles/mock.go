package versatiles

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// MockReaderProfile selects the synthetic tiles a mock reader yields.
type MockReaderProfile int

const (
	// MockProfilePNG yields uncompressed PNG tiles.
	MockProfilePNG MockReaderProfile = iota
	// MockProfilePBF yields gzipped vector tiles with one "places"
	// layer containing one feature.
	MockProfilePBF
	// MockProfileWhatever yields per-coordinate binary payloads.
	MockProfileWhatever
)

// mockPNG carries the PNG signature plus a minimal IHDR; enough for
// format sniffing, never decoded.
var mockPNG = Blob{
	0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00,
}

func mockVectorTile() Blob {
	feature := geojson.NewFeature(orb.Point{50, 50})
	feature.Properties = geojson.Properties{
		"osm_id": float64(42),
		"name":   "unnamed",
	}
	layers := mvt.Layers{{
		Name:     "places",
		Version:  2,
		Extent:   4096,
		Features: []*geojson.Feature{feature},
	}}
	data, err := mvt.Marshal(layers)
	if err != nil {
		panic(err)
	}
	compressed, err := Compress(data, GzipCompression)
	if err != nil {
		panic(err)
	}
	return compressed
}

// MockTilesReader yields synthetic tiles covering the full pyramid up
// to a maximum zoom. It exists for tests only.
type MockTilesReader struct {
	profile    MockReaderProfile
	parameters TilesReaderParameters
	payload    Blob
}

func NewMockTilesReader(profile MockReaderProfile, maxZoom uint8) *MockTilesReader {
	pyramid := NewFullTileBBoxPyramid(maxZoom)

	r := &MockTilesReader{profile: profile}
	switch profile {
	case MockProfilePNG:
		r.payload = mockPNG
		r.parameters = NewTilesReaderParameters(pyramid, PNG, NoCompression)
	case MockProfilePBF:
		r.payload = mockVectorTile()
		r.parameters = NewTilesReaderParameters(pyramid, PBF, GzipCompression)
	default:
		r.parameters = NewTilesReaderParameters(pyramid, BIN, NoCompression)
	}
	return r
}

func (r *MockTilesReader) Name() string {
	return "mock"
}

func (r *MockTilesReader) ContainerName() string {
	return "mock"
}

func (r *MockTilesReader) Parameters() *TilesReaderParameters {
	return &r.parameters
}

func (r *MockTilesReader) OverrideCompression(compression TileCompression) {
	r.parameters.TileCompression = compression
}

func (r *MockTilesReader) Meta() (Blob, error) {
	return Blob(`{"type":"dummy"}`), nil
}

func (r *MockTilesReader) TileData(_ context.Context, coord TileCoord3) (Blob, error) {
	if !r.parameters.BBoxPyramid.Contains(coord) {
		return nil, nil
	}
	if r.profile == MockProfileWhatever {
		return Blob(fmt.Sprintf("mock tile %s", coord)), nil
	}
	return r.payload, nil
}

func (r *MockTilesReader) BBoxTileStream(ctx context.Context, bbox TileBBox) *TileStream {
	return defaultBBoxTileStream(ctx, r, bbox)
}

// MockTilesWriter drains a reader without emitting bytes.
type MockTilesWriter struct {
	// TileCount holds the number of tiles drained after WriteToWriter.
	TileCount uint64
}

func NewMockTilesWriter() *MockTilesWriter {
	return &MockTilesWriter{}
}

// WriteToWriter touches every part of the reader contract and drains
// every level; the byte sink may be nil.
func (w *MockTilesWriter) WriteToWriter(ctx context.Context, reader TilesReader, _ *ValueWriter) error {
	_ = reader.Name()
	_ = reader.ContainerName()
	if _, err := reader.Meta(); err != nil {
		return err
	}
	for _, level := range reader.Parameters().BBoxPyramid.IterLevels() {
		stream := reader.BBoxTileStream(ctx, level)
		n, err := stream.DrainAndCount(ctx)
		if err != nil {
			return err
		}
		w.TileCount += n
	}
	return nil
}
