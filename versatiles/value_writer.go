package versatiles

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
)

// ValueWriter is an append-only byte sink with fixed-width and varint
// write primitives. Rewrite patches already-written bytes, which the
// container writer uses to fill in the header after the layout is known.
type ValueWriter struct {
	order binary.ByteOrder
	pos   uint64

	buf  *bufio.Writer
	file *os.File
	mem  *memBackend
}

type memBackend struct {
	data []byte
}

func (m *memBackend) Write(p []byte) (int, error) {
	m.data = append(m.data, p...)
	return len(p), nil
}

// NewBlobValueWriter collects writes in memory; retrieve them with Blob.
func NewBlobValueWriter(order binary.ByteOrder) *ValueWriter {
	return &ValueWriter{order: order, mem: &memBackend{}}
}

// NewFileValueWriter creates the file, truncating any existing content.
func NewFileValueWriter(path string, order binary.ByteOrder) (*ValueWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &ValueWriter{order: order, file: f, buf: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (w *ValueWriter) sink() io.Writer {
	if w.buf != nil {
		return w.buf
	}
	return w.mem
}

// Position returns the number of bytes appended so far.
func (w *ValueWriter) Position() uint64 {
	return w.pos
}

func (w *ValueWriter) Write(p []byte) (int, error) {
	n, err := w.sink().Write(p)
	w.pos += uint64(n)
	return n, err
}

// WriteBlob appends the blob and returns the range it occupies.
func (w *ValueWriter) WriteBlob(b Blob) (ByteRange, error) {
	r := ByteRange{Offset: w.pos, Length: b.Len()}
	_, err := w.Write(b)
	return r, err
}

func (w *ValueWriter) WriteU8(v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func (w *ValueWriter) WriteU16(v uint16) error {
	buf := make([]byte, 2)
	w.order.PutUint16(buf, v)
	_, err := w.Write(buf)
	return err
}

func (w *ValueWriter) WriteU32(v uint32) error {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}

func (w *ValueWriter) WriteU64(v uint64) error {
	buf := make([]byte, 8)
	w.order.PutUint64(buf, v)
	_, err := w.Write(buf)
	return err
}

func (w *ValueWriter) WriteI32(v int32) error {
	return w.WriteU32(uint32(v))
}

func (w *ValueWriter) WriteF32(v float32) error {
	return w.WriteU32(math.Float32bits(v))
}

func (w *ValueWriter) WriteF64(v float64) error {
	return w.WriteU64(math.Float64bits(v))
}

// WriteVarint appends an unsigned LEB128 value.
func (w *ValueWriter) WriteVarint(v uint64) error {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	_, err := w.Write(buf[:n])
	return err
}

// Rewrite overwrites previously appended bytes in place. The patched
// range must already have been written.
func (w *ValueWriter) Rewrite(offset uint64, p []byte) error {
	if offset+uint64(len(p)) > w.pos {
		return corruptf("rewrite of %d bytes at %d exceeds written length %d", len(p), offset, w.pos)
	}
	if w.file != nil {
		if err := w.buf.Flush(); err != nil {
			return err
		}
		_, err := w.file.WriteAt(p, int64(offset))
		return err
	}
	copy(w.mem.data[offset:], p)
	return nil
}

// Blob returns the collected bytes of an in-memory writer.
func (w *ValueWriter) Blob() Blob {
	if w.mem == nil {
		return nil
	}
	return w.mem.data
}

// Close flushes and returns the total number of bytes written.
func (w *ValueWriter) Close() (uint64, error) {
	if w.file != nil {
		if err := w.buf.Flush(); err != nil {
			return w.pos, err
		}
		if err := w.file.Close(); err != nil {
			return w.pos, err
		}
	}
	return w.pos, nil
}
