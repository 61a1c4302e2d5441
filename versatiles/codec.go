package versatiles

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Compress encodes a blob with the target compression. The input is
// never modified; NoCompression returns it unchanged.
func Compress(data Blob, target TileCompression) (Blob, error) {
	switch target {
	case NoCompression:
		return data, nil
	case GzipCompression:
		var b bytes.Buffer
		w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case BrotliCompression:
		var b bytes.Buffer
		w := brotli.NewWriterLevel(&b, brotli.BestCompression)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case ZstdCompression:
		w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, err
		}
		out := w.EncodeAll(data, nil)
		w.Close()
		return out, nil
	default:
		return nil, unsupportedf("compression %q", target)
	}
}

// Decompress decodes a blob compressed with the given algorithm.
// Malformed input surfaces as ErrCorrupt.
func Decompress(data Blob, source TileCompression) (Blob, error) {
	switch source {
	case NoCompression:
		return data, nil
	case GzipCompression:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, corruptf("gzip: %v", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, corruptf("gzip: %v", err)
		}
		return out, nil
	case BrotliCompression:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, corruptf("brotli: %v", err)
		}
		return out, nil
	case ZstdCompression:
		r, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out, err := r.DecodeAll(data, nil)
		if err != nil {
			return nil, corruptf("zstd: %v", err)
		}
		return out, nil
	default:
		return nil, unsupportedf("compression %q", source)
	}
}

// Recompress converts a blob from one compression to another, passing
// the bytes through untouched when they already match.
func Recompress(data Blob, source, target TileCompression) (Blob, error) {
	if source == target {
		return data, nil
	}
	raw, err := Decompress(data, source)
	if err != nil {
		return nil, err
	}
	return Compress(raw, target)
}
