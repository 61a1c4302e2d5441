package versatiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockReaderPNG(t *testing.T) {
	ctx := context.Background()
	reader := NewMockTilesReader(MockProfilePNG, 3)

	assert.Equal(t, "mock", reader.ContainerName())
	assert.Equal(t, PNG, reader.Parameters().TileFormat)
	assert.Equal(t, NoCompression, reader.Parameters().TileCompression)

	data, err := reader.TileData(ctx, TileCoord3{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, PNG, DetectTileFormat(data))

	missing, err := reader.TileData(ctx, TileCoord3{4, 0, 0})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMockReaderPBF(t *testing.T) {
	ctx := context.Background()
	reader := NewMockTilesReader(MockProfilePBF, 2)
	assert.Equal(t, PBF, reader.Parameters().TileFormat)
	assert.Equal(t, GzipCompression, reader.Parameters().TileCompression)

	data, err := reader.TileData(ctx, TileCoord3{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, GzipCompression, DetectCompression(data))
}

func TestMockWriterDrains(t *testing.T) {
	writer := NewMockTilesWriter()
	require.NoError(t, writer.WriteToWriter(context.Background(), NewMockTilesReader(MockProfileWhatever, 3), nil))
	assert.Equal(t, uint64(85), writer.TileCount)
}
