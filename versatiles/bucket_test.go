package versatiles

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryByteSource(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryByteSource("mem", Blob("0123456789"))
	assert.Equal(t, uint64(10), src.Len())

	data, err := src.ReadRange(ctx, ByteRange{Offset: 2, Length: 3})
	require.NoError(t, err)
	assert.Equal(t, "234", data.String())

	_, err = src.ReadRange(ctx, ByteRange{Offset: 8, Length: 3})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileByteSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello byte source"), 0644))

	src, err := NewFileByteSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, uint64(17), src.Len())
	data, err := src.ReadRange(ctx, ByteRange{Offset: 6, Length: 4})
	require.NoError(t, err)
	assert.Equal(t, "byte", data.String())

	_, err = src.ReadRange(ctx, ByteRange{Offset: 16, Length: 5})
	assert.ErrorIs(t, err, ErrCorrupt)
}

// rangeClient serves Range requests from an in-memory payload.
type rangeClient struct {
	payload []byte
}

func (c *rangeClient) Do(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodHead {
		return &http.Response{
			StatusCode:    http.StatusOK,
			ContentLength: int64(len(c.payload)),
			Body:          io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}
	var start, end int
	if _, err := fmt.Sscanf(req.Header.Get("Range"), "bytes=%d-%d", &start, &end); err != nil {
		return &http.Response{StatusCode: http.StatusBadRequest, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	if end >= len(c.payload) {
		return &http.Response{StatusCode: http.StatusRequestedRangeNotSatisfiable, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return &http.Response{
		StatusCode: http.StatusPartialContent,
		Body:       io.NopCloser(bytes.NewReader(c.payload[start : end+1])),
	}, nil
}

func TestHTTPByteSource(t *testing.T) {
	ctx := context.Background()
	client := &rangeClient{payload: []byte("remote archive bytes")}

	src, err := NewHTTPByteSource("https://example.com/demo.versatiles", client, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), src.Len())

	data, err := src.ReadRange(ctx, ByteRange{Offset: 7, Length: 7})
	require.NoError(t, err)
	assert.Equal(t, "archive", data.String())

	_, err = src.ReadRange(ctx, ByteRange{Offset: 15, Length: 10})
	assert.Error(t, err)
}

func TestVTCOverHTTPRange(t *testing.T) {
	ctx := context.Background()
	vw := NewBlobValueWriter(bigEndian)
	require.NoError(t, NewVTCWriter(VTCWriterOptions{}).WriteToWriter(ctx, NewMockTilesReader(MockProfileWhatever, 2), vw))

	client := &rangeClient{payload: vw.Blob()}
	src, err := NewHTTPByteSource("https://example.com/demo.versatiles", client, 0)
	require.NoError(t, err)

	reader, err := OpenVTCReader(ctx, src)
	require.NoError(t, err)
	data, err := reader.TileData(ctx, TileCoord3{2, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, "mock tile 2/3/3", data.String())
}
