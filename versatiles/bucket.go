package versatiles

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"gocloud.dev/blob"
)

// ByteSource is a random-access byte store behind an archive reader:
// a local file, an in-memory blob, an HTTP endpoint with range requests,
// or a gocloud bucket object.
type ByteSource interface {
	// ReadRange fetches exactly the requested bytes. Ranges past the end
	// are an error, never a short read.
	ReadRange(ctx context.Context, r ByteRange) (Blob, error)
	// Len returns the total size in bytes.
	Len() uint64
	// Name identifies the source, e.g. the filename or URL.
	Name() string
	Close() error
}

// OpenByteSource dispatches on the URI scheme: http(s) URLs become range
// readers, bucket URLs (s3://, gs://, azblob://) go through gocloud, and
// everything else is opened as a local file.
func OpenByteSource(ctx context.Context, uri string) (ByteSource, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return NewHTTPByteSource(uri, http.DefaultClient, 30*time.Second)
	}
	if strings.Contains(uri, "://") && !strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		key := strings.TrimPrefix(u.Path, "/")
		bucketURL := u.Scheme + "://" + u.Host
		return NewBucketByteSource(ctx, bucketURL, key)
	}
	return NewFileByteSource(strings.TrimPrefix(uri, "file://"))
}

// MemoryByteSource serves ranges from an in-memory blob.
type MemoryByteSource struct {
	name string
	data Blob
}

func NewMemoryByteSource(name string, data Blob) *MemoryByteSource {
	return &MemoryByteSource{name: name, data: data}
}

func (s *MemoryByteSource) ReadRange(_ context.Context, r ByteRange) (Blob, error) {
	if r.End() > s.data.Len() {
		return nil, corruptf("range %s exceeds source length %d", r, s.data.Len())
	}
	return s.data[r.Offset:r.End()], nil
}

func (s *MemoryByteSource) Len() uint64 {
	return s.data.Len()
}

func (s *MemoryByteSource) Name() string {
	return s.name
}

func (s *MemoryByteSource) Close() error {
	return nil
}

// FileByteSource serves ranges from a local file.
type FileByteSource struct {
	name string
	file *os.File
	size uint64
}

func NewFileByteSource(name string) (*FileByteSource, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &FileByteSource{name: name, file: file, size: uint64(info.Size())}, nil
}

func (s *FileByteSource) ReadRange(_ context.Context, r ByteRange) (Blob, error) {
	if r.End() > s.size {
		return nil, corruptf("range %s exceeds source length %d", r, s.size)
	}
	buf := make([]byte, r.Length)
	if _, err := s.file.ReadAt(buf, int64(r.Offset)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *FileByteSource) Len() uint64 {
	return s.size
}

func (s *FileByteSource) Name() string {
	return s.name
}

func (s *FileByteSource) Close() error {
	return s.file.Close()
}

// HTTPClient lets tests swap the default client for a mock one.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPByteSource serves ranges with HTTP Range requests and a per-request
// deadline.
type HTTPByteSource struct {
	url     string
	client  HTTPClient
	timeout time.Duration
	size    uint64
}

func NewHTTPByteSource(url string, client HTTPClient, timeout time.Duration) (*HTTPByteSource, error) {
	s := &HTTPByteSource{url: url, client: client, timeout: timeout}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		s.size = uint64(resp.ContentLength)
	}
	return s, nil
}

func (s *HTTPByteSource) ReadRange(ctx context.Context, r ByteRange) (Blob, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.Offset, r.End()-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, err
	}
	if uint64(buf.Len()) != r.Length {
		return nil, fmt.Errorf("expected %d bytes but received %d", r.Length, buf.Len())
	}
	return buf.Bytes(), nil
}

func (s *HTTPByteSource) Len() uint64 {
	return s.size
}

func (s *HTTPByteSource) Name() string {
	return s.url
}

func (s *HTTPByteSource) Close() error {
	return nil
}

// BucketByteSource serves ranges from an object in a gocloud bucket.
// Drivers are registered by the importing binary.
type BucketByteSource struct {
	bucket *blob.Bucket
	key    string
	name   string
	size   uint64
}

func NewBucketByteSource(ctx context.Context, bucketURL, key string) (*BucketByteSource, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	attrs, err := bucket.Attributes(ctx, key)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return &BucketByteSource{
		bucket: bucket,
		key:    key,
		name:   bucketURL + "/" + path.Clean(key),
		size:   uint64(attrs.Size),
	}, nil
}

func (s *BucketByteSource) ReadRange(ctx context.Context, r ByteRange) (Blob, error) {
	reader, err := s.bucket.NewRangeReader(ctx, s.key, int64(r.Offset), int64(r.Length), nil)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	buf := make([]byte, r.Length)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *BucketByteSource) Len() uint64 {
	return s.size
}

func (s *BucketByteSource) Name() string {
	return s.name
}

func (s *BucketByteSource) Close() error {
	return s.bucket.Close()
}
