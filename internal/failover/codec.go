package failover

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

const (
	// DefaultLabelAttribute is the EXTINF attribute holding the channel label.
	DefaultLabelAttribute = "tvg-name"

	playlistHeader = "#EXTM3U"
	metadataMarker = "#EXTINF"

	// unknownDuration is the EXTINF duration used for live entries.
	unknownDuration = -1

	maxLineSize = 1024 * 1024
)

var (
	reLabelJunk  = regexp.MustCompile(`[^A-Za-z0-9 -]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// NormalizeLabel turns a raw channel label into a channel name: characters
// other than ASCII letters, digits, spaces and hyphens are dropped, runs of
// whitespace become a single hyphen and the result is lowercased.
// NormalizeLabel(NormalizeLabel(s)) == NormalizeLabel(s).
//
// Hyphens in the input are kept, so "ESPN-2 HD" becomes "espn-2-hd".
// Converters that strip hyphens would produce "espn2-hd"; mappings written
// by such tools need their keys renamed before they line up.
func NormalizeLabel(raw string) string {
	s := reLabelJunk.ReplaceAllString(raw, "")
	s = reWhitespace.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}

// Parse reads a playlist and returns the channel mapping it describes.
// Every EXTINF line carrying attr="..." names a channel (after
// NormalizeLabel) and the line that follows it is a candidate for that
// channel. Repeated labels accumulate candidates in the order they appear.
// Entries that cannot be understood are skipped, including any line longer
// than maxLineSize together with the entry it belongs to. The only errors
// returned come from reading r.
func Parse(r io.Reader, attr string) (*ChannelMapping, error) {
	if attr == "" {
		attr = DefaultLabelAttribute
	}
	reAttr, err := regexp.Compile(regexp.QuoteMeta(attr) + `="([^"]+)"`)
	if err != nil {
		return nil, fmt.Errorf("label attribute %q: %w", attr, err)
	}

	br := bufio.NewReaderSize(r, 64*1024)

	m := NewChannelMapping()
	var pending string // normalized label waiting for its URL line
	havePending := false

	for {
		raw, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tooLong {
			havePending = false
			continue
		}
		line := strings.TrimSpace(string(raw))

		if havePending {
			havePending = false
			if line != "" && !strings.HasPrefix(line, "#") {
				m.Append(pending, line)
				continue
			}
		}

		if !strings.HasPrefix(line, metadataMarker) {
			continue
		}
		match := reAttr.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := NormalizeLabel(match[1])
		if name == "" {
			continue
		}
		pending, havePending = name, true
	}
	return m, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed to its end and reported with tooLong set and no
// content. io.EOF is returned only once no input is left.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, isPrefix, rerr := br.ReadLine()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && (len(line) > 0 || tooLong) {
				return line, tooLong, nil
			}
			return nil, false, rerr
		}
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

// ParseString is Parse over an in-memory document. Parse only fails on read
// errors, which a string reader never produces.
func ParseString(text, attr string) *ChannelMapping {
	m, err := Parse(strings.NewReader(text), attr)
	if err != nil {
		return NewChannelMapping()
	}
	return m
}

// Serialize renders m as an extended M3U playlist. Each channel becomes an
// EXTINF line titled with the last path segment of its URL followed by the
// URL produced by urlFor.
func Serialize(m *ChannelMapping, urlFor func(name string) string) string {
	var b strings.Builder

	b.WriteString(playlistHeader)
	b.WriteString("\n")

	for _, name := range m.Names() {
		u := urlFor(name)
		b.WriteString(fmt.Sprintf("%s:%d,%s\n", metadataMarker, unknownDuration, entryTitle(u)))
		b.WriteString(u)
		b.WriteString("\n")
	}

	return b.String()
}

// entryTitle returns the last path segment of u, ignoring any query.
func entryTitle(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}
