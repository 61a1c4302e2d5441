package versatiles

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultStreamParallelism bounds the in-flight work of one stream stage.
const DefaultStreamParallelism = 32

// Tile pairs a coordinate with its payload.
type Tile struct {
	Coord TileCoord3
	Data  Blob
}

// TileStream is a lazy, single-pass sequence of tiles produced with
// bounded parallelism. Items arrive in arbitrary completion order unless
// the stream was built with an ordered constructor. Closing the stream
// halts production; in-flight work is abandoned at its next suspension
// point.
type TileStream struct {
	ch      chan Tile
	cancel  context.CancelFunc
	ordered bool
	par     int

	mu      sync.Mutex
	err     error
	dropped uint64

	// OnTileError observes per-tile failures; the tile is dropped either
	// way. Stream-level failures abort the stream instead.
	OnTileError func(TileCoord3, error)

	// FailOnTileError escalates the first per-tile failure to a
	// stream-level abort.
	FailOnTileError bool
}

func newTileStream(ctx context.Context, ordered bool, parallel int) (*TileStream, context.Context) {
	if parallel <= 0 {
		parallel = DefaultStreamParallelism
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &TileStream{
		ch:      make(chan Tile),
		cancel:  cancel,
		ordered: ordered,
		par:     parallel,
	}
	return s, ctx
}

func (s *TileStream) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *TileStream) dropTile(coord TileCoord3, err error) {
	s.mu.Lock()
	s.dropped++
	handler := s.OnTileError
	strict := s.FailOnTileError
	s.mu.Unlock()
	if handler != nil {
		handler(coord, err)
	}
	if strict {
		s.fail(err)
		s.cancel()
	}
}

// Err returns the stream-level error after the stream is exhausted.
func (s *TileStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped returns the number of tiles dropped by per-tile errors.
func (s *TileStream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close halts production. Safe to call more than once.
func (s *TileStream) Close() {
	s.cancel()
}

// Next yields the next tile, blocking until one is ready. ok is false
// once the stream is exhausted or cancelled; check Err afterwards.
func (s *TileStream) Next(ctx context.Context) (Tile, bool) {
	select {
	case t, ok := <-s.ch:
		return t, ok
	case <-ctx.Done():
		s.fail(ctx.Err())
		return Tile{}, false
	}
}

func (s *TileStream) send(ctx context.Context, t Tile) bool {
	select {
	case s.ch <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// TileFetch resolves one coordinate to its payload. A nil blob means the
// tile is absent and is dropped from the stream.
type TileFetch func(ctx context.Context, coord TileCoord3) (Blob, error)

// NewTileStreamFromCoords produces tiles for the given coordinates in
// arbitrary completion order with bounded parallelism.
func NewTileStreamFromCoords(ctx context.Context, coords []TileCoord3, parallel int, fetch TileFetch) *TileStream {
	s, ctx := newTileStream(ctx, false, parallel)
	go func() {
		defer close(s.ch)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.par)
		for _, coord := range coords {
			if gctx.Err() != nil {
				break
			}
			coord := coord
			g.Go(func() error {
				data, err := fetch(gctx, coord)
				if err != nil {
					s.dropTile(coord, err)
					return nil
				}
				if data == nil {
					return nil
				}
				s.send(gctx, Tile{Coord: coord, Data: data})
				return nil
			})
		}
		s.fail(g.Wait())
	}()
	return s
}

// NewOrderedTileStreamFromCoords is NewTileStreamFromCoords preserving
// the input order through an internal reordering buffer.
func NewOrderedTileStreamFromCoords(ctx context.Context, coords []TileCoord3, parallel int, fetch TileFetch) *TileStream {
	s, ctx := newTileStream(ctx, true, parallel)
	go func() {
		defer close(s.ch)
		s.runOrdered(ctx, len(coords), func(i int) (TileCoord3, Blob, error) {
			data, err := fetch(ctx, coords[i])
			return coords[i], data, err
		})
	}()
	return s
}

type orderedResult struct {
	coord TileCoord3
	data  Blob
	err   error
}

// runOrdered fans work out to s.par workers and forwards results in
// input order. The pending queue is the reordering buffer; its capacity
// is what bounds work in flight.
func (s *TileStream) runOrdered(ctx context.Context, n int, work func(i int) (TileCoord3, Blob, error)) {
	pending := make(chan chan orderedResult, s.par)

	go func() {
		defer close(pending)
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return
			}
			i := i
			slot := make(chan orderedResult, 1)
			select {
			case pending <- slot:
			case <-ctx.Done():
				return
			}
			go func() {
				coord, data, err := work(i)
				slot <- orderedResult{coord: coord, data: data, err: err}
			}()
		}
	}()

	for slot := range pending {
		res := <-slot
		if res.err != nil {
			s.dropTile(res.coord, res.err)
			continue
		}
		if res.data == nil {
			continue
		}
		if !s.send(ctx, Tile{Coord: res.coord, Data: res.data}) {
			return
		}
	}
}

// NewTileStreamFromTiles produces a fixed sequence of tiles in order.
func NewTileStreamFromTiles(ctx context.Context, tiles []Tile) *TileStream {
	s, ctx := newTileStream(ctx, true, 1)
	go func() {
		defer close(s.ch)
		for _, t := range tiles {
			if !s.send(ctx, t) {
				return
			}
		}
	}()
	return s
}

// BlobTransform rewrites one tile payload. A nil result drops the tile.
type BlobTransform func(ctx context.Context, coord TileCoord3, data Blob) (Blob, error)

// MapBlob applies an async payload transform, preserving coordinates,
// ordering mode and parallelism bound.
func (s *TileStream) MapBlob(ctx context.Context, transform BlobTransform) *TileStream {
	out, ctx := newTileStream(ctx, s.ordered, s.par)
	out.OnTileError = s.OnTileError

	if s.ordered {
		go func() {
			defer close(out.ch)
			defer s.Close()
			pending := make(chan chan orderedResult, out.par)
			go func() {
				defer close(pending)
				for {
					t, ok := s.Next(ctx)
					if !ok {
						return
					}
					slot := make(chan orderedResult, 1)
					select {
					case pending <- slot:
					case <-ctx.Done():
						return
					}
					go func() {
						data, err := transform(ctx, t.Coord, t.Data)
						slot <- orderedResult{coord: t.Coord, data: data, err: err}
					}()
				}
			}()
			for slot := range pending {
				res := <-slot
				if res.err != nil {
					out.dropTile(res.coord, res.err)
					continue
				}
				if res.data == nil {
					continue
				}
				if !out.send(ctx, Tile{Coord: res.coord, Data: res.data}) {
					return
				}
			}
			out.fail(s.Err())
		}()
		return out
	}

	go func() {
		defer close(out.ch)
		defer s.Close()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(out.par)
		for {
			t, ok := s.Next(gctx)
			if !ok {
				break
			}
			g.Go(func() error {
				data, err := transform(gctx, t.Coord, t.Data)
				if err != nil {
					out.dropTile(t.Coord, err)
					return nil
				}
				if data == nil {
					return nil
				}
				out.send(gctx, Tile{Coord: t.Coord, Data: data})
				return nil
			})
		}
		out.fail(g.Wait())
		out.fail(s.Err())
	}()
	return out
}

// Filter keeps the tiles the predicate accepts.
func (s *TileStream) Filter(ctx context.Context, keep func(Tile) bool) *TileStream {
	out, ctx := newTileStream(ctx, s.ordered, s.par)
	out.OnTileError = s.OnTileError
	go func() {
		defer close(out.ch)
		defer s.Close()
		for {
			t, ok := s.Next(ctx)
			if !ok {
				break
			}
			if !keep(t) {
				continue
			}
			if !out.send(ctx, t) {
				return
			}
		}
		out.fail(s.Err())
	}()
	return out
}

// Chain yields every tile of s, then every tile of next.
func (s *TileStream) Chain(ctx context.Context, next *TileStream) *TileStream {
	out, ctx := newTileStream(ctx, s.ordered && next.ordered, s.par)
	out.OnTileError = s.OnTileError
	go func() {
		defer close(out.ch)
		defer s.Close()
		defer next.Close()
		for _, src := range []*TileStream{s, next} {
			for {
				t, ok := src.Next(ctx)
				if !ok {
					break
				}
				if !out.send(ctx, t) {
					return
				}
			}
			out.fail(src.Err())
		}
	}()
	return out
}

// Merge combines two streams. When both yield the same coordinate the
// resolver decides the surviving tile. The other stream is buffered.
func (s *TileStream) Merge(ctx context.Context, other *TileStream, resolve func(a, b Tile) Tile) *TileStream {
	out, ctx := newTileStream(ctx, false, s.par)
	out.OnTileError = s.OnTileError
	go func() {
		defer close(out.ch)
		defer s.Close()
		defer other.Close()

		buffered := make(map[TileCoord3]Tile)
		order := make([]TileCoord3, 0)
		for {
			t, ok := other.Next(ctx)
			if !ok {
				break
			}
			buffered[t.Coord] = t
			order = append(order, t.Coord)
		}
		out.fail(other.Err())

		for {
			t, ok := s.Next(ctx)
			if !ok {
				break
			}
			if b, dup := buffered[t.Coord]; dup {
				t = resolve(t, b)
				delete(buffered, t.Coord)
			}
			if !out.send(ctx, t) {
				return
			}
		}
		out.fail(s.Err())

		for _, coord := range order {
			t, ok := buffered[coord]
			if !ok {
				continue
			}
			if !out.send(ctx, t) {
				return
			}
		}
	}()
	return out
}

// DrainAndCount consumes the stream and returns the number of tiles.
func (s *TileStream) DrainAndCount(ctx context.Context) (uint64, error) {
	var n uint64
	for {
		_, ok := s.Next(ctx)
		if !ok {
			break
		}
		n++
	}
	return n, s.Err()
}

// Collect consumes the stream into a slice.
func (s *TileStream) Collect(ctx context.Context) ([]Tile, error) {
	tiles := make([]Tile, 0)
	for {
		t, ok := s.Next(ctx)
		if !ok {
			break
		}
		tiles = append(tiles, t)
	}
	return tiles, s.Err()
}
