package versatiles

import "encoding/json"

// TileJSON composes a TileJSON 3.0 document from a reader's parameters
// and metadata. tilesURL, when non-empty, becomes the tile endpoint
// template.
func TileJSON(reader TilesReader, tilesURL string) (Blob, error) {
	parameters := reader.Parameters()

	tilejson := make(map[string]interface{})
	tilejson["tilejson"] = "3.0.0"
	tilejson["scheme"] = "xyz"
	tilejson["format"] = parameters.TileFormat.String()

	meta, err := reader.Meta()
	if err != nil {
		return nil, err
	}
	if meta != nil {
		var metadata map[string]interface{}
		if err := json.Unmarshal(meta, &metadata); err == nil {
			for _, key := range []string{"name", "description", "attribution", "version", "vector_layers"} {
				if value, ok := metadata[key]; ok {
					tilejson[key] = value
				}
			}
		}
	}

	if tilesURL != "" {
		tilejson["tiles"] = []string{tilesURL + "/{z}/{x}/{y}." + parameters.TileFormat.Extension()}
	}

	pyramid := &parameters.BBoxPyramid
	if !pyramid.IsEmpty() {
		geo := pyramid.ToGeoBBox()
		tilejson["bounds"] = []float64{geo.West, geo.South, geo.East, geo.North}
		tilejson["minzoom"] = pyramid.ZoomMin()
		tilejson["maxzoom"] = pyramid.ZoomMax()
	}

	return json.Marshal(tilejson)
}
