package versatiles

import "bytes"

// TileFormat is the payload format of individual tiles in an archive.
type TileFormat uint8

const (
	BIN TileFormat = iota
	PNG
	JPG
	WEBP
	AVIF
	SVG
	PDF
	PBF
	GEOJSON
	TOPOJSON
	JSON
	UnknownFormat
)

func (f TileFormat) String() string {
	switch f {
	case BIN:
		return "bin"
	case PNG:
		return "png"
	case JPG:
		return "jpg"
	case WEBP:
		return "webp"
	case AVIF:
		return "avif"
	case SVG:
		return "svg"
	case PDF:
		return "pdf"
	case PBF:
		return "pbf"
	case GEOJSON:
		return "geojson"
	case TOPOJSON:
		return "topojson"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// TileFormatFromString parses a format name, e.g. from CLI flags or
// MBTiles metadata. MVT is an alias for PBF.
func TileFormatFromString(s string) (TileFormat, error) {
	switch s {
	case "bin":
		return BIN, nil
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPG, nil
	case "webp":
		return WEBP, nil
	case "avif":
		return AVIF, nil
	case "svg":
		return SVG, nil
	case "pdf":
		return PDF, nil
	case "pbf", "mvt":
		return PBF, nil
	case "geojson":
		return GEOJSON, nil
	case "topojson":
		return TOPOJSON, nil
	case "json":
		return JSON, nil
	default:
		return UnknownFormat, unsupportedf("tile format %q", s)
	}
}

// Extension returns the filename extension without the dot.
func (f TileFormat) Extension() string {
	return f.String()
}

// TileFormatFromExtension maps a filename extension (without dot) to a
// format; returns UnknownFormat for anything unrecognized.
func TileFormatFromExtension(ext string) TileFormat {
	f, err := TileFormatFromString(ext)
	if err != nil {
		return UnknownFormat
	}
	return f
}

// ContentType returns the MIME type served for tiles of this format.
func (f TileFormat) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPG:
		return "image/jpeg"
	case WEBP:
		return "image/webp"
	case AVIF:
		return "image/avif"
	case SVG:
		return "image/svg+xml"
	case PDF:
		return "application/pdf"
	case PBF:
		return "application/x-protobuf"
	case GEOJSON, TOPOJSON, JSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// headerByte is the wire encoding used in the container header.
func (f TileFormat) headerByte() (uint8, error) {
	switch f {
	case BIN:
		return 0, nil
	case PNG:
		return 1, nil
	case JPG:
		return 2, nil
	case WEBP:
		return 3, nil
	case AVIF:
		return 4, nil
	case SVG:
		return 5, nil
	case PDF:
		return 6, nil
	case PBF:
		return 16, nil
	case GEOJSON:
		return 17, nil
	case TOPOJSON:
		return 18, nil
	case JSON:
		return 19, nil
	default:
		return 0, unsupportedf("tile format byte for %q", f)
	}
}

func tileFormatFromHeaderByte(b uint8) (TileFormat, error) {
	switch b {
	case 0:
		return BIN, nil
	case 1:
		return PNG, nil
	case 2:
		return JPG, nil
	case 3:
		return WEBP, nil
	case 4:
		return AVIF, nil
	case 5:
		return SVG, nil
	case 6:
		return PDF, nil
	case 16:
		return PBF, nil
	case 17:
		return GEOJSON, nil
	case 18:
		return TOPOJSON, nil
	case 19:
		return JSON, nil
	default:
		return UnknownFormat, corruptf("unknown tile format byte %d", b)
	}
}

// DetectTileFormat sniffs the format from leading magic bytes. Vector
// tiles have no magic, so anything unrecognized comes back BIN.
func DetectTileFormat(data Blob) TileFormat {
	switch {
	case len(data) >= 8 && bytes.Equal(data[0:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}):
		return PNG
	case len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff:
		return JPG
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return WEBP
	case len(data) >= 12 && bytes.Equal(data[4:12], []byte("ftypavif")):
		return AVIF
	case len(data) >= 5 && bytes.Equal(data[0:5], []byte("%PDF-")):
		return PDF
	default:
		return BIN
	}
}
