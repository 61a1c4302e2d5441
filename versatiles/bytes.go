package versatiles

import "fmt"

// ByteRange addresses a slice of a byte source by absolute offset.
// A zero length is the canonical "absent" marker in tile indexes.
type ByteRange struct {
	Offset uint64
	Length uint64
}

func (r ByteRange) IsEmpty() bool {
	return r.Length == 0
}

// End returns the first offset past the range.
func (r ByteRange) End() uint64 {
	return r.Offset + r.Length
}

// ContainedIn reports whether the range lies fully inside the other.
func (r ByteRange) ContainedIn(outer ByteRange) bool {
	return r.Offset >= outer.Offset && r.End() <= outer.End()
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d..%d)", r.Offset, r.End())
}
