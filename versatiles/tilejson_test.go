package versatiles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileJSON(t *testing.T) {
	reader := NewMockTilesReader(MockProfilePNG, 3)
	data, err := TileJSON(reader, "https://tiles.example.com/demo")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "3.0.0", doc["tilejson"])
	assert.Equal(t, "xyz", doc["scheme"])
	assert.Equal(t, "png", doc["format"])
	assert.Equal(t, []interface{}{"https://tiles.example.com/demo/{z}/{x}/{y}.png"}, doc["tiles"])
	assert.Equal(t, 0.0, doc["minzoom"])
	assert.Equal(t, 3.0, doc["maxzoom"])

	bounds := doc["bounds"].([]interface{})
	assert.InDelta(t, -180.0, bounds[0].(float64), 1e-6)
	assert.InDelta(t, 180.0, bounds[2].(float64), 1e-6)
}

func TestErrorExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(configf("bad property")))
	assert.Equal(t, 2, ExitCode(assert.AnError))
	assert.Equal(t, 3, ExitCode(corruptf("bad magic")))
	assert.Equal(t, 4, ExitCode(unsupportedf("mbtiles writing")))
}
