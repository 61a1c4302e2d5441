package versatiles

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCoords(n int) []TileCoord3 {
	bbox := NewFullTileBBox(4)
	return bbox.IterCoords()[:n]
}

func TestStreamUnordered(t *testing.T) {
	ctx := context.Background()
	coords := testCoords(100)

	stream := NewTileStreamFromCoords(ctx, coords, 8, func(_ context.Context, c TileCoord3) (Blob, error) {
		return Blob(c.String()), nil
	})
	tiles, err := stream.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, len(tiles))

	seen := make(map[TileCoord3]bool)
	for _, tile := range tiles {
		assert.Equal(t, tile.Coord.String(), tile.Data.String())
		seen[tile.Coord] = true
	}
	assert.Equal(t, 100, len(seen))
}

func TestStreamOrdered(t *testing.T) {
	ctx := context.Background()
	coords := testCoords(100)

	stream := NewOrderedTileStreamFromCoords(ctx, coords, 8, func(_ context.Context, c TileCoord3) (Blob, error) {
		return Blob(c.String()), nil
	})
	tiles, err := stream.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, len(tiles))
	for i, tile := range tiles {
		assert.Equal(t, coords[i], tile.Coord)
	}
}

func TestStreamDropsAbsentAndFailed(t *testing.T) {
	ctx := context.Background()
	coords := testCoords(30)

	var reported atomic.Int64
	stream := NewTileStreamFromCoords(ctx, coords, 4, func(_ context.Context, c TileCoord3) (Blob, error) {
		switch {
		case c.X%3 == 0:
			return nil, nil // absent
		case c.X%3 == 1:
			return nil, fmt.Errorf("boom")
		default:
			return Blob("x"), nil
		}
	})
	stream.OnTileError = func(TileCoord3, error) {
		reported.Add(1)
	}
	count, err := stream.DrainAndCount(ctx)
	require.NoError(t, err)
	assert.Less(t, count, uint64(30))
	assert.Equal(t, stream.Dropped(), uint64(reported.Load()))
}

func TestStreamStrict(t *testing.T) {
	ctx := context.Background()
	coords := testCoords(50)

	stream := NewTileStreamFromCoords(ctx, coords, 4, func(_ context.Context, c TileCoord3) (Blob, error) {
		return Blob("x"), nil
	})
	out := stream.MapBlob(ctx, func(_ context.Context, c TileCoord3, _ Blob) (Blob, error) {
		if c.X == 3 {
			return nil, fmt.Errorf("broken tile")
		}
		return Blob("y"), nil
	})
	out.FailOnTileError = true
	_, err := out.DrainAndCount(ctx)
	assert.Error(t, err)
}

func TestStreamMapBlobOrdered(t *testing.T) {
	ctx := context.Background()
	coords := testCoords(64)

	stream := NewOrderedTileStreamFromCoords(ctx, coords, 8, func(_ context.Context, c TileCoord3) (Blob, error) {
		return Blob(c.String()), nil
	})
	mapped := stream.MapBlob(ctx, func(_ context.Context, _ TileCoord3, data Blob) (Blob, error) {
		return append(Blob("mapped "), data...), nil
	})
	tiles, err := mapped.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 64, len(tiles))
	for i, tile := range tiles {
		assert.Equal(t, coords[i], tile.Coord)
		assert.Equal(t, "mapped "+tile.Coord.String(), tile.Data.String())
	}
}

func TestStreamFilterChain(t *testing.T) {
	ctx := context.Background()
	a := NewTileStreamFromTiles(ctx, []Tile{
		{Coord: TileCoord3{1, 0, 0}, Data: Blob("a")},
		{Coord: TileCoord3{1, 1, 0}, Data: Blob("b")},
	})
	b := NewTileStreamFromTiles(ctx, []Tile{
		{Coord: TileCoord3{1, 0, 1}, Data: Blob("c")},
	})

	chained := a.Filter(ctx, func(tile Tile) bool {
		return tile.Data.String() != "b"
	}).Chain(ctx, b)

	tiles, err := chained.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, len(tiles))
	assert.Equal(t, "a", tiles[0].Data.String())
	assert.Equal(t, "c", tiles[1].Data.String())
}

func TestStreamMerge(t *testing.T) {
	ctx := context.Background()
	a := NewTileStreamFromTiles(ctx, []Tile{
		{Coord: TileCoord3{1, 0, 0}, Data: Blob("left")},
		{Coord: TileCoord3{1, 1, 0}, Data: Blob("only left")},
	})
	b := NewTileStreamFromTiles(ctx, []Tile{
		{Coord: TileCoord3{1, 0, 0}, Data: Blob("right")},
		{Coord: TileCoord3{1, 1, 1}, Data: Blob("only right")},
	})

	merged := a.Merge(ctx, b, func(left, right Tile) Tile {
		return left
	})
	tiles, err := merged.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, len(tiles))

	byCoord := make(map[TileCoord3]string)
	for _, tile := range tiles {
		byCoord[tile.Coord] = tile.Data.String()
	}
	assert.Equal(t, "left", byCoord[TileCoord3{1, 0, 0}])
	assert.Equal(t, "only left", byCoord[TileCoord3{1, 1, 0}])
	assert.Equal(t, "only right", byCoord[TileCoord3{1, 1, 1}])
}

func TestStreamCancellation(t *testing.T) {
	ctx := context.Background()
	coords := NewFullTileBBox(8).IterCoords()

	stream := NewTileStreamFromCoords(ctx, coords, 4, func(_ context.Context, c TileCoord3) (Blob, error) {
		return Blob("x"), nil
	})
	_, ok := stream.Next(ctx)
	require.True(t, ok)
	stream.Close()
	// production halts; the stream drains without blocking forever
	for {
		if _, ok := stream.Next(ctx); !ok {
			break
		}
	}
}

func TestStreamBoundedParallelism(t *testing.T) {
	ctx := context.Background()
	coords := testCoords(64)

	var inFlight, maxInFlight atomic.Int64
	stream := NewTileStreamFromCoords(ctx, coords, 4, func(_ context.Context, c TileCoord3) (Blob, error) {
		n := inFlight.Add(1)
		for {
			max := maxInFlight.Load()
			if n <= max || maxInFlight.CompareAndSwap(max, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return Blob("x"), nil
	})
	count, err := stream.DrainAndCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), count)
	assert.LessOrEqual(t, maxInFlight.Load(), int64(4))
}
