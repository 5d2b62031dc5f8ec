package failover

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMapping is written when no backing document exists yet.
func DefaultMapping() *ChannelMapping {
	m := NewChannelMapping()
	m.Set("tester", []string{"OMG1337", "OMG1338"})
	return m
}

// MappingStore owns the canonical channel mapping and the modification-time
// watermark of the document it was loaded from. Readers get copies via
// Snapshot; Reload is the only way the served mapping changes.
type MappingStore struct {
	mu        sync.RWMutex
	doc       Document
	current   *ChannelMapping
	watermark time.Time
}

// NewMappingStore returns an empty store over doc. Call EnsureInitialized
// or Reload before serving.
func NewMappingStore(doc Document) *MappingStore {
	return &MappingStore{doc: doc, current: NewChannelMapping()}
}

// Load reads and decodes the backing document without changing the store.
func (s *MappingStore) Load() (*ChannelMapping, error) {
	data, err := s.doc.Read()
	if err != nil {
		return nil, err
	}
	return decodeMapping(data)
}

// EnsureInitialized writes def when there is no backing document, otherwise
// it loads the existing one. Either way the result becomes the current
// mapping and its modification time the watermark. Calling it again is
// harmless.
func (s *MappingStore) EnsureInitialized(def *ChannelMapping) (*ChannelMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.doc.Read()
	switch {
	case errors.Is(err, ErrDocumentNotExist):
		if err := s.writeLocked(def); err != nil {
			return nil, err
		}
		data, err = s.doc.Read()
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	m, err := decodeMapping(data)
	if err != nil {
		return nil, err
	}
	mod, err := s.doc.ModTime()
	if err != nil {
		return nil, err
	}
	s.current = m
	s.watermark = mod
	return m.Clone(), nil
}

// Reload re-reads the backing document when its modification time differs
// from the watermark and swaps it in. It reports whether the mapping was
// replaced. On error nothing changes and the next call tries again.
func (s *MappingStore) Reload() (changed bool, err error) {
	mod, err := s.doc.ModTime()
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	same := mod.Equal(s.watermark)
	s.mu.RUnlock()
	if same {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock; a concurrent Reload may have won.
	mod, err = s.doc.ModTime()
	if err != nil {
		return false, err
	}
	if mod.Equal(s.watermark) {
		return false, nil
	}
	data, err := s.doc.Read()
	if err != nil {
		return false, err
	}
	m, err := decodeMapping(data)
	if err != nil {
		return false, err
	}
	s.current = m
	s.watermark = mod
	return true, nil
}

// Snapshot returns a copy of the current mapping. Later reloads do not
// affect it.
func (s *MappingStore) Snapshot() *ChannelMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Watermark returns the modification time of the document behind the
// current mapping.
func (s *MappingStore) Watermark() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark
}

// Update applies fn to the mapping currently in the backing document and
// persists the result when fn reports a change. The served mapping is left
// alone; it follows on the next Reload. A missing document counts as empty.
func (s *MappingStore) Update(fn func(m *ChannelMapping) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := NewChannelMapping()
	data, err := s.doc.Read()
	switch {
	case errors.Is(err, ErrDocumentNotExist):
	case err != nil:
		return err
	default:
		if m, err = decodeMapping(data); err != nil {
			return err
		}
	}

	if !fn(m) {
		return nil
	}
	return s.writeLocked(m)
}

func (s *MappingStore) writeLocked(m *ChannelMapping) error {
	data, err := EncodeMapping(m)
	if err != nil {
		return err
	}
	return s.doc.Write(data)
}

// EncodeMapping renders m the way the backing document stores it: indented
// JSON with a trailing newline.
func EncodeMapping(m *ChannelMapping) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeMapping(data []byte) (*ChannelMapping, error) {
	m := NewChannelMapping()
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}
