package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// Sink is the destination for a finished invoice document.
// key is a slash-separated relative path; its last element is the download name.
// Save returns where the document can be found afterwards: a path or a URL.
type Sink interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// DocumentKey namespaces a document by owner, invoice and content hash so two users
// publishing the same download name never share a storage location.
func DocumentKey(userID string, invoiceID int, sha256Hex, filename string) string {
	digest := sha256Hex
	if len(digest) > 16 {
		digest = digest[:16]
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		name = "document.pdf"
	}
	return path.Join("u"+userID, strconv.Itoa(invoiceID), digest, name)
}

// cleanKey rejects keys that would escape the sink's root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if cleaned == "." || cleaned == ".." || path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return cleaned, nil
}

// downloadName is the last element of key.
func downloadName(key string) string {
	return path.Base(key)
}

// FileSink writes documents into a directory on local disk.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Save writes data under dir/key, creating intermediate directories.
func (s *FileSink) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for '%s': %w", target, err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		log.Printf("FileSink: Failed to write '%s': %v", target, err)
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	log.Printf("FileSink: Saved %s (%d bytes)", target, len(data))
	return target, nil
}

// CompositeSink fans a document out to several sinks.
type CompositeSink struct {
	sinks []Sink
}

func NewCompositeSink(sinks ...Sink) *CompositeSink {
	return &CompositeSink{sinks: sinks}
}

// AddSink appends a sink. Nil is ignored.
func (cs *CompositeSink) AddSink(sink Sink) {
	if sink != nil {
		cs.sinks = append(cs.sinks, sink)
	}
}

func (cs *CompositeSink) Len() int {
	return len(cs.sinks)
}

// Save tries every sink even when one fails. The returned location is the
// comma-separated list of successful locations; the error joins all failures.
func (cs *CompositeSink) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	locations, err := cs.SaveAll(ctx, key, contentType, data)
	return strings.Join(locations, ","), err
}

// SaveAll is Save with the locations kept apart.
func (cs *CompositeSink) SaveAll(ctx context.Context, key, contentType string, data []byte) ([]string, error) {
	if len(cs.sinks) == 0 {
		return nil, fmt.Errorf("no sinks configured in CompositeSink")
	}

	var locations []string
	var errs []error
	for _, sink := range cs.sinks {
		loc, err := sink.Save(ctx, key, contentType, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}

	if len(errs) > 0 {
		return locations, fmt.Errorf("composite save failed: %w", errors.Join(errs...))
	}
	return locations, nil
}
