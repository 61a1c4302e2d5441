package versatiles

// TileCompression is the compression applied to individual tiles, the
// metadata blob and the archive's internal indexes.
type TileCompression uint8

const (
	NoCompression     TileCompression = 0
	GzipCompression   TileCompression = 1
	BrotliCompression TileCompression = 2
	ZstdCompression   TileCompression = 3
)

func (c TileCompression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case GzipCompression:
		return "gzip"
	case BrotliCompression:
		return "br"
	case ZstdCompression:
		return "zstd"
	}
	return "unknown"
}

// TileCompressionFromString parses a compression name; "br" and "brotli"
// are both accepted.
func TileCompressionFromString(s string) (TileCompression, error) {
	switch s {
	case "none", "":
		return NoCompression, nil
	case "gzip":
		return GzipCompression, nil
	case "br", "brotli":
		return BrotliCompression, nil
	case "zstd":
		return ZstdCompression, nil
	default:
		return NoCompression, unsupportedf("tile compression %q", s)
	}
}

func tileCompressionFromHeaderByte(b uint8) (TileCompression, error) {
	if b > uint8(ZstdCompression) {
		return NoCompression, corruptf("unknown tile compression byte %d", b)
	}
	return TileCompression(b), nil
}

// Extension returns the filename suffix for compressed entries, e.g.
// "meta.json.gz", or "" for uncompressed data.
func (c TileCompression) Extension() string {
	switch c {
	case GzipCompression:
		return ".gz"
	case BrotliCompression:
		return ".br"
	case ZstdCompression:
		return ".zst"
	}
	return ""
}

// DetectCompression sniffs the compression from leading magic bytes.
// Brotli has no magic and cannot be detected this way.
func DetectCompression(data Blob) TileCompression {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return GzipCompression
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd:
		return ZstdCompression
	default:
		return NoCompression
	}
}
