package versatiles

import (
	"encoding/binary"
	"io"
	"math"
	"os"
)

// ValueReader is a positioned cursor over a byte source, decoding
// fixed-width values with a configurable byte order plus unsigned LEB128
// varints. Sub-readers share the backing source but carry independent
// positions and bounds.
type ValueReader struct {
	src   io.ReaderAt
	order binary.ByteOrder
	start uint64
	len   uint64
	pos   uint64
}

// NewBlobValueReader reads from an in-memory blob.
func NewBlobValueReader(data Blob, order binary.ByteOrder) *ValueReader {
	return &ValueReader{src: blobReaderAt(data), order: order, len: data.Len()}
}

// NewFileValueReader reads from an open file. The caller keeps ownership
// of the handle.
func NewFileValueReader(f *os.File, order binary.ByteOrder) (*ValueReader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &ValueReader{src: f, order: order, len: uint64(info.Size())}, nil
}

type blobReaderAt Blob

func (b blobReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Len returns the total number of readable bytes.
func (r *ValueReader) Len() uint64 {
	return r.len
}

// Position returns the current cursor offset.
func (r *ValueReader) Position() uint64 {
	return r.pos
}

// SetPosition moves the cursor; positions at or past the end fail.
func (r *ValueReader) SetPosition(pos uint64) error {
	if pos >= r.len {
		return corruptf("position %d outside length %d", pos, r.len)
	}
	r.pos = pos
	return nil
}

// Remaining returns the number of bytes left before the end.
func (r *ValueReader) Remaining() uint64 {
	return r.len - r.pos
}

func (r *ValueReader) read(n uint64) ([]byte, error) {
	if r.pos+n > r.len {
		return nil, corruptf("read of %d bytes at %d exceeds length %d", n, r.pos, r.len)
	}
	buf := make([]byte, n)
	if _, err := r.src.ReadAt(buf, int64(r.start+r.pos)); err != nil && err != io.EOF {
		return nil, err
	}
	r.pos += n
	return buf, nil
}

// ReadBlob returns the next n bytes as a blob.
func (r *ValueReader) ReadBlob(n uint64) (Blob, error) {
	buf, err := r.read(n)
	return Blob(buf), err
}

func (r *ValueReader) ReadU8() (uint8, error) {
	buf, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (r *ValueReader) ReadU16() (uint16, error) {
	buf, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

func (r *ValueReader) ReadU32() (uint32, error) {
	buf, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

func (r *ValueReader) ReadU64() (uint64, error) {
	buf, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(buf), nil
}

func (r *ValueReader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *ValueReader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *ValueReader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadVarint decodes an unsigned LEB128 value. More than 9 continuation
// bytes is invalid.
func (r *ValueReader) ReadVarint() (uint64, error) {
	var value uint64
	for shift := 0; shift < 70; shift += 7 {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
	}
	return 0, corruptf("varint exceeds 9 continuation bytes")
}

// SubReader consumes the next length bytes and returns an independent
// cursor bounded to them.
func (r *ValueReader) SubReader(length uint64) (*ValueReader, error) {
	if r.pos+length > r.len {
		return nil, corruptf("sub reader of %d bytes at %d exceeds length %d", length, r.pos, r.len)
	}
	sub := &ValueReader{
		src:   r.src,
		order: r.order,
		start: r.start + r.pos,
		len:   length,
	}
	r.pos += length
	return sub, nil
}
