package failover

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ChannelMapping is an ordered mapping from channel name to its candidate
// identifiers. Candidate order is priority order: the first candidate is
// tried first. Channel insertion order is preserved so that generated
// playlists are deterministic.
//
// A ChannelMapping handed out by MappingStore.Snapshot is a private copy;
// mutating it never affects the store.
type ChannelMapping struct {
	names      []string
	candidates map[string][]string
}

// NewChannelMapping returns an empty mapping.
func NewChannelMapping() *ChannelMapping {
	return &ChannelMapping{candidates: make(map[string][]string)}
}

func (m *ChannelMapping) init() {
	if m.candidates == nil {
		m.candidates = make(map[string][]string)
	}
}

// Append adds candidate to the end of name's candidate list, creating the
// channel if needed. Duplicates are kept; use Merge for union semantics.
func (m *ChannelMapping) Append(name, candidate string) {
	m.init()
	if _, ok := m.candidates[name]; !ok {
		m.names = append(m.names, name)
	}
	m.candidates[name] = append(m.candidates[name], candidate)
}

// Set replaces name's candidate list. A new name goes to the end.
func (m *ChannelMapping) Set(name string, candidates []string) {
	m.init()
	if _, ok := m.candidates[name]; !ok {
		m.names = append(m.names, name)
	}
	m.candidates[name] = slices.Clone(candidates)
	if m.candidates[name] == nil {
		m.candidates[name] = []string{}
	}
}

// Candidates returns a copy of name's candidate list. ok is false when the
// channel does not exist.
func (m *ChannelMapping) Candidates(name string) (candidates []string, ok bool) {
	c, ok := m.candidates[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(c), true
}

// Names returns the channel names in insertion order.
func (m *ChannelMapping) Names() []string {
	return slices.Clone(m.names)
}

// Len returns the number of channels.
func (m *ChannelMapping) Len() int {
	return len(m.names)
}

// Clone returns a deep copy.
func (m *ChannelMapping) Clone() *ChannelMapping {
	out := &ChannelMapping{
		names:      slices.Clone(m.names),
		candidates: make(map[string][]string, len(m.candidates)),
	}
	for name, c := range m.candidates {
		out.candidates[name] = slices.Clone(c)
	}
	return out
}

// Merge folds other into m: new channels are appended, existing channels
// get their candidate lists extended with tokens they do not already have.
// It returns the number of candidates added.
func (m *ChannelMapping) Merge(other *ChannelMapping) int {
	m.init()
	added := 0
	for _, name := range other.names {
		existing, ok := m.candidates[name]
		if !ok {
			m.names = append(m.names, name)
			existing = []string{}
		}
		for _, c := range other.candidates[name] {
			if slices.Contains(existing, c) {
				continue
			}
			existing = append(existing, c)
			added++
		}
		m.candidates[name] = existing
	}
	return added
}

// MarshalJSON encodes the mapping as a JSON object whose keys follow
// insertion order.
func (m *ChannelMapping) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		c := m.candidates[name]
		if c == nil {
			c = []string{}
		}
		val, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes an object of string arrays, keeping document order.
// Any other shape is reported as ErrStoreCorrupt. A key repeated in the
// document keeps its first position and its last value.
func (m *ChannelMapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrStoreCorrupt, tok)
	}

	out := NewChannelMapping()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected key %v", ErrStoreCorrupt, tok)
		}
		var candidates []string
		if err := dec.Decode(&candidates); err != nil {
			return fmt.Errorf("%w: channel %q: %v", ErrStoreCorrupt, name, err)
		}
		if candidates == nil {
			return fmt.Errorf("%w: channel %q: null candidate list", ErrStoreCorrupt, name)
		}
		out.Set(name, candidates)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after object", ErrStoreCorrupt)
	}

	*m = *out
	return nil
}
