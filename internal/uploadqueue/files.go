package uploadqueue

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a candidate for upload: a display name, a byte size and a way to read the content.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, // images
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, // documents
	".txt": {}, ".csv": {}, ".json": {}, ".xml": {}, // text/data
	".mp4": {}, ".mp3": {}, ".zip": {}, ".tar": {}, ".gz": {}, // media/archives
}

// Extension returns the lower-cased last dot segment of name, dot included.
// A name without a dot yields the whole name as its extension, so "README" maps to ".readme".
func Extension(name string) string {
	return "." + strings.ToLower(name[strings.LastIndex(name, ".")+1:])
}

// Accepts reports whether a file passes the client-side pre-filter.
func Accepts(name string, size int64) bool {
	if size <= 0 {
		return false
	}
	_, ok := allowedExtensions[Extension(name)]
	return ok
}

// AllowedExtensions lists the accepted extensions in sorted order.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FormatBytes renders a size the way the upload list displays it.
func FormatBytes(n int64) string {
	switch {
	case n <= 0:
		return "0 B"
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	}
}

type localFile struct {
	path string
	size int64
}

// LocalFile stats path and returns it as an upload candidate named by its base name.
func LocalFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &localFile{path: path, size: info.Size()}, nil
}

func (f *localFile) Name() string                 { return filepath.Base(f.path) }
func (f *localFile) Size() int64                  { return f.size }
func (f *localFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

type memoryFile struct {
	name string
	data []byte
}

// BytesFile wraps an in-memory payload.
func BytesFile(name string, data []byte) File {
	return &memoryFile{name: name, data: data}
}

func (f *memoryFile) Name() string { return f.name }
func (f *memoryFile) Size() int64  { return int64(len(f.data)) }
func (f *memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type formFile struct {
	header *multipart.FileHeader
}

// FormFile adapts a multipart part received by an HTTP handler.
func FormFile(header *multipart.FileHeader) File {
	return &formFile{header: header}
}

func (f *formFile) Name() string                 { return f.header.Filename }
func (f *formFile) Size() int64                  { return f.header.Size }
func (f *formFile) Open() (io.ReadCloser, error) { return f.header.Open() }
