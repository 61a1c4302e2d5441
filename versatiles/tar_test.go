package versatiles

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTarFixture(t *testing.T, entries map[string]Blob) Blob {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, data := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(data))}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestTarReader(t *testing.T) {
	ctx := context.Background()
	data := buildTarFixture(t, map[string]Blob{
		"0/0/0.png": Blob("tile a"),
		"1/0/0.png": Blob("tile b"),
		"1/1/1.png": Blob("tile c"),
		"meta.json": Blob(`{"name":"fixture"}`),
	})

	reader, err := OpenTarReader(ctx, NewMemoryByteSource("fixture.tar", data))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "tar", reader.ContainerName())
	assert.Equal(t, PNG, reader.Parameters().TileFormat)

	pyramid := &reader.Parameters().BBoxPyramid
	assert.Equal(t, TileBBox{Level: 0, XMin: 0, YMin: 0, XMax: 0, YMax: 0}, pyramid.Level(0))
	assert.Equal(t, TileBBox{Level: 1, XMin: 0, YMin: 0, XMax: 1, YMax: 1}, pyramid.Level(1))

	tile, err := reader.TileData(ctx, TileCoord3{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, "tile c", tile.String())

	missing, err := reader.TileData(ctx, TileCoord3{1, 0, 1})
	require.NoError(t, err)
	assert.Nil(t, missing)

	meta, err := reader.Meta()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fixture"}`, meta.String())
}

func TestTarReaderCompressedMeta(t *testing.T) {
	ctx := context.Background()
	meta, err := Compress(Blob(`{"name":"zipped"}`), GzipCompression)
	require.NoError(t, err)
	data := buildTarFixture(t, map[string]Blob{
		"meta.json.gz": meta,
		"3/1/2.pbf.gz": Blob("compressed tile"),
	})

	reader, err := OpenTarReader(ctx, NewMemoryByteSource("fixture.tar", data))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, PBF, reader.Parameters().TileFormat)
	assert.Equal(t, GzipCompression, reader.Parameters().TileCompression)

	decoded, err := reader.Meta()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"zipped"}`, decoded.String())
}

func TestTarRoundtrip(t *testing.T) {
	ctx := context.Background()
	mock := NewMockTilesReader(MockProfileWhatever, 3)

	vw := NewBlobValueWriter(bigEndian)
	require.NoError(t, NewTarWriter().WriteToWriter(ctx, mock, vw))

	reader, err := OpenTarReader(ctx, NewMemoryByteSource("roundtrip.tar", vw.Blob()))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, BIN, reader.Parameters().TileFormat)
	assert.Equal(t, mock.Parameters().BBoxPyramid.Count(), reader.Parameters().BBoxPyramid.Count())

	for _, coord := range []TileCoord3{{0, 0, 0}, {2, 3, 1}, {3, 7, 7}} {
		want, err := mock.TileData(ctx, coord)
		require.NoError(t, err)
		got, err := reader.TileData(ctx, coord)
		require.NoError(t, err)
		assert.Equal(t, want, got, "tile %s", coord)
	}

	wantMeta, err := mock.Meta()
	require.NoError(t, err)
	gotMeta, err := reader.Meta()
	require.NoError(t, err)
	assert.Equal(t, wantMeta, gotMeta)
}
