package versatiles

import "context"

// buildReadOperation wraps the auto-detected archive reader for the
// given filename; the archive passes through unchanged.
func buildReadOperation(ctx context.Context, _ *Composer, node VDLNode, input TilesReader) (TilesReader, error) {
	if input != nil {
		return nil, configf("operation 'read' cannot consume an input")
	}
	filename, err := node.PropertyString("filename")
	if err != nil {
		return nil, err
	}
	return OpenReader(ctx, filename)
}
