package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVDLSimple(t *testing.T) {
	pipeline, err := ParseVDL(`read[filename="a.versatiles"] | pbf_update_properties[layer=x, id_field=i, data="t.csv"]`)
	require.NoError(t, err)
	require.Equal(t, 2, len(pipeline.Nodes))

	read := pipeline.Nodes[0]
	assert.Equal(t, "read", read.Name)
	filename, err := read.PropertyString("filename")
	require.NoError(t, err)
	assert.Equal(t, "a.versatiles", filename)

	update := pipeline.Nodes[1]
	assert.Equal(t, "pbf_update_properties", update.Name)
	layer, err := update.PropertyString("layer")
	require.NoError(t, err)
	assert.Equal(t, "x", layer)
}

func TestParseVDLValues(t *testing.T) {
	pipeline, err := ParseVDL(`node[a="quoted string", b=42, c=true, d=[1, 2, 3], e='single']`)
	require.NoError(t, err)
	node := pipeline.Nodes[0]

	a, _ := node.PropertyString("a")
	assert.Equal(t, "quoted string", a)
	n, err := node.PropertyNumber("b", 0)
	require.NoError(t, err)
	assert.Equal(t, 42.0, n)
	b, err := node.PropertyBool("c")
	require.NoError(t, err)
	assert.True(t, b)
	assert.Equal(t, []string{"1", "2", "3"}, node.PropertyList("d"))
	e, _ := node.PropertyString("e")
	assert.Equal(t, "single", e)
}

func TestParseVDLChildren(t *testing.T) {
	pipeline, err := ParseVDL(`merge { read[filename=a.tar]; read[filename=b.tar] | filter[zoom=3] }`)
	require.NoError(t, err)
	node := pipeline.Nodes[0]
	require.Equal(t, 2, len(node.Children))
	assert.Equal(t, 1, len(node.Children[0].Nodes))
	assert.Equal(t, 2, len(node.Children[1].Nodes))
	assert.Equal(t, "filter", node.Children[1].Nodes[1].Name)
}

func TestParseVDLComments(t *testing.T) {
	pipeline, err := ParseVDL(`
		# a pipeline
		read[filename="a.versatiles"] # the source
		| pbf_update_properties[id_field=id, data=t.csv]
	`)
	require.NoError(t, err)
	assert.Equal(t, 2, len(pipeline.Nodes))
}

func TestParseVDLErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"read[",
		"read[filename]",
		`read[filename="unterminated]`,
		"read | ",
		"read {",
		"read trailing garbage !",
	} {
		_, err := ParseVDL(input)
		assert.ErrorIs(t, err, ErrCorrupt, "input %q", input)
	}
}

func TestVDLRoundtrip(t *testing.T) {
	inputs := []string{
		`read[filename="a.versatiles"] | pbf_update_properties[layer=x, id_field=i, data="t.csv"]`,
		`merge { read[filename=a.tar]; read[filename=b.tar] }`,
		`node[list=[1, 2, 3], flag=true]`,
	}
	for _, input := range inputs {
		first, err := ParseVDL(input)
		require.NoError(t, err)
		printed := first.String()
		second, err := ParseVDL(printed)
		require.NoError(t, err, "re-parsing %q", printed)
		assert.Equal(t, first, second, "roundtrip of %q via %q", input, printed)
	}
}

func TestVDLPropertyErrors(t *testing.T) {
	pipeline, err := ParseVDL(`node[multi=[a, b]]`)
	require.NoError(t, err)
	node := pipeline.Nodes[0]

	_, err = node.PropertyString("missing")
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorContains(t, err, "field 'missing' does not exist")

	_, err = node.PropertyString("multi")
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorContains(t, err, "must have exactly one entry")
}
