package failover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// Document is the persistence abstraction for the mapping: a single JSON
// blob plus a modification-time signal. The MappingStore uses a Document
// for all reads and writes; callers of MappingStore do not need to know
// which Document is used.
type Document interface {
	// Read returns the document bytes, or an error wrapping
	// ErrDocumentNotExist when there is no document yet.
	Read() ([]byte, error)
	// Write replaces the document. Readers never observe a partial write.
	Write(data []byte) error
	// ModTime reports when the document last changed.
	ModTime() (time.Time, error)
}

// FileDocument is a Document stored at Path on the local filesystem.
type FileDocument struct {
	Path string
}

// NewFileDocument returns a FileDocument for path.
func NewFileDocument(path string) *FileDocument {
	return &FileDocument{Path: path}
}

// Read implements Document.Read.
func (d *FileDocument) Read() ([]byte, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, d.wrap(err)
	}
	return data, nil
}

// Write implements Document.Write. The file is replaced atomically (write
// to a temp file, fsync, rename) so neither the reload loop nor a human
// editor ever sees half a document.
func (d *FileDocument) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	if err := renameio.WriteFile(d.Path, data, 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", d.Path, err)
	}
	return nil
}

// ModTime implements Document.ModTime.
func (d *FileDocument) ModTime() (time.Time, error) {
	fi, err := os.Stat(d.Path)
	if err != nil {
		return time.Time{}, d.wrap(err)
	}
	return fi.ModTime(), nil
}

func (d *FileDocument) wrap(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrDocumentNotExist, err)
	}
	return fmt.Errorf("document %s: %w", d.Path, err)
}

// MemoryDocument is an in-memory Document. Every Write advances the
// modification time by one nanosecond past the previous value so that
// changes are always observable, even on coarse clocks.
type MemoryDocument struct {
	mu      sync.Mutex
	data    []byte
	exists  bool
	modTime time.Time
}

// NewMemoryDocument returns an empty, non-existent document.
func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{}
}

// Read implements Document.Read.
func (d *MemoryDocument) Read() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.exists {
		return nil, ErrDocumentNotExist
	}
	return slices.Clone(d.data), nil
}

// Write implements Document.Write.
func (d *MemoryDocument) Write(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = slices.Clone(data)
	d.exists = true
	now := time.Now()
	if !now.After(d.modTime) {
		now = d.modTime.Add(time.Nanosecond)
	}
	d.modTime = now
	return nil
}

// ModTime implements Document.ModTime.
func (d *MemoryDocument) ModTime() (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.exists {
		return time.Time{}, ErrDocumentNotExist
	}
	return d.modTime, nil
}
