package failover

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// proxyPath is the per-channel redirect route, relative to the self base URL.
const proxyPath = "/proxy/"

// ProxyURL returns the redirect endpoint of channel name under selfBaseURL.
func ProxyURL(selfBaseURL, name string) string {
	return strings.TrimSuffix(selfBaseURL, "/") + proxyPath + url.PathEscape(name)
}

// Generate renders the playlist served to viewers. Every entry points at
// this service's own redirect endpoint rather than at an upstream candidate,
// so each play re-runs failover.
func Generate(m *ChannelMapping, selfBaseURL string) string {
	return Serialize(m, func(name string) string {
		return ProxyURL(selfBaseURL, name)
	})
}

// Artifact is the generated playlist file on disk.
type Artifact struct {
	Path string
}

// NewArtifact returns an Artifact at path.
func NewArtifact(path string) *Artifact {
	return &Artifact{Path: path}
}

// Write atomically replaces the artifact with playlist.
func (a *Artifact) Write(playlist string) error {
	if dir := filepath.Dir(a.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}

	pending, err := renameio.NewPendingFile(a.Path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending playlist file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.WriteString(playlist); err != nil {
		return fmt.Errorf("write playlist data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace playlist file: %w", err)
	}
	return nil
}

// Read returns the artifact bytes.
func (a *Artifact) Read() ([]byte, error) {
	return os.ReadFile(a.Path)
}
