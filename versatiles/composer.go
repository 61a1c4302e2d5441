package versatiles

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// The composer builds a reader from a VDL pipeline: the first node is a
// source, every following node consumes its predecessor. Since every
// operation implements TilesReader, any stage can feed any sink.

// operationBuilder constructs one operation. input is nil for the first
// node of a pipeline.
type operationBuilder func(ctx context.Context, c *Composer, node VDLNode, input TilesReader) (TilesReader, error)

var operationRegistry = map[string]operationBuilder{
	"read":                  buildReadOperation,
	"pbf_update_properties": buildPBFUpdateProperties,
}

// OperationLookup maps names to already-constructed readers. A pipeline
// node whose name is registered here resolves to that reader, sharing
// its underlying source; unshared references must construct their own
// node to keep single-pass semantics.
type OperationLookup struct {
	entries map[string]TilesReader
}

func NewOperationLookup() *OperationLookup {
	return &OperationLookup{entries: make(map[string]TilesReader)}
}

// Register makes a constructed reader available under a name.
func (l *OperationLookup) Register(name string, reader TilesReader) {
	l.entries[name] = reader
}

func (l *OperationLookup) resolve(name string) (TilesReader, bool) {
	reader, ok := l.entries[name]
	return reader, ok
}

// Composer turns VDL pipelines into reader DAGs.
type Composer struct {
	lookup *OperationLookup
	logger *zap.Logger
}

func NewComposer(lookup *OperationLookup, logger *zap.Logger) *Composer {
	if lookup == nil {
		lookup = NewOperationLookup()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{lookup: lookup, logger: logger}
}

// BuildVDL parses a VDL document and builds its pipeline.
func (c *Composer) BuildVDL(ctx context.Context, source string) (TilesReader, error) {
	pipeline, err := ParseVDL(source)
	if err != nil {
		return nil, err
	}
	return c.BuildPipeline(ctx, pipeline)
}

// BuildPipeline chains the nodes of one pipeline into a single reader.
func (c *Composer) BuildPipeline(ctx context.Context, pipeline VDLPipeline) (TilesReader, error) {
	if len(pipeline.Nodes) == 0 {
		return nil, configf("empty pipeline")
	}
	var input TilesReader
	for _, node := range pipeline.Nodes {
		reader, err := c.buildNode(ctx, node, input)
		if err != nil {
			return nil, fmt.Errorf("failed building operation '%s': %w", node.Name, err)
		}
		input = reader
	}
	return input, nil
}

func (c *Composer) buildNode(ctx context.Context, node VDLNode, input TilesReader) (TilesReader, error) {
	if builder, ok := operationRegistry[node.Name]; ok {
		return builder(ctx, c, node, input)
	}
	if reader, ok := c.lookup.resolve(node.Name); ok {
		if input != nil {
			return nil, configf("operation '%s' cannot consume an input", node.Name)
		}
		return reader, nil
	}
	return nil, configf("operation '%s' is unknown", node.Name)
}
