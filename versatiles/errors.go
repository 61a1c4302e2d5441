package versatiles

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt indicates a structural invariant violation: bad magic,
	// out-of-bounds range, index length mismatch, malformed VDL.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrUnsupported indicates a feature not available in this build or
	// format, e.g. writing MBTiles.
	ErrUnsupported = errors.New("unsupported")

	// ErrConfig indicates a missing or unparseable pipeline property.
	ErrConfig = errors.New("config error")

	// ErrCancelled indicates cooperative cancellation.
	ErrCancelled = errors.New("cancelled")
)

func corruptf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

func unsupportedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func configf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// ExitCode maps an error chain to the CLI exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfig):
		return 1
	case errors.Is(err, ErrCorrupt):
		return 3
	case errors.Is(err, ErrUnsupported):
		return 4
	default:
		return 2
	}
}
