package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"channel-failover/internal/platform/metrics"
)

// DefaultPollInterval is the cadence of the ingest and reload loops.
const DefaultPollInterval = 5 * time.Second

var playlistExtensions = []string{".m3u", ".m3u8"}

// IngestConfig configures an IngestWatcher.
type IngestConfig struct {
	// InboxDir is scanned for playlist files.
	InboxDir string
	// Interval between scans. Defaults to DefaultPollInterval.
	Interval time.Duration
	// LabelAttribute names the EXTINF attribute carrying the channel label.
	LabelAttribute string
	// SettleTime skips files modified more recently than this, so a file
	// still being copied in is not consumed half-written.
	SettleTime time.Duration
}

// IngestReport summarises one scan of the inbox.
type IngestReport struct {
	Processed       int
	Failed          int
	ChannelsAdded   int
	CandidatesAdded int
}

// IngestWatcher converts playlist files dropped into an inbox directory
// and merges them into the backing document.
type IngestWatcher struct {
	cfg     IngestConfig
	store   *MappingStore
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewIngestWatcher returns a watcher merging into store. Metrics may be nil.
func NewIngestWatcher(cfg IngestConfig, store *MappingStore, log *slog.Logger, m *metrics.Metrics) *IngestWatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.LabelAttribute == "" {
		cfg.LabelAttribute = DefaultLabelAttribute
	}
	return &IngestWatcher{cfg: cfg, store: store, log: log, metrics: m, now: time.Now}
}

// Run scans the inbox every interval until ctx is done.
func (w *IngestWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.InboxDir, 0o755); err != nil {
		w.log.Warn("create inbox dir", slog.String("dir", w.cfg.InboxDir), slog.String("error", err.Error()))
	}
	w.log.Info("ingest watcher started",
		slog.String("dir", w.cfg.InboxDir),
		slog.Duration("interval", w.cfg.Interval))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.ScanOnce(ctx); err != nil {
			w.log.Warn("inbox scan failed", slog.String("dir", w.cfg.InboxDir), slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			w.log.Info("ingest watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ScanOnce processes every eligible file currently in the inbox. A file
// that fails is left in place and retried on the next scan; it does not
// stop the others. The returned error only covers listing the inbox.
func (w *IngestWatcher) ScanOnce(ctx context.Context) (IngestReport, error) {
	var report IngestReport

	entries, err := os.ReadDir(w.cfg.InboxDir)
	if err != nil {
		return report, fmt.Errorf("list inbox: %w", err)
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if e.IsDir() || !isPlaylistFile(e.Name()) {
			continue
		}
		if w.cfg.SettleTime > 0 {
			info, err := e.Info()
			if err != nil || w.now().Sub(info.ModTime()) < w.cfg.SettleTime {
				continue
			}
		}

		path := filepath.Join(w.cfg.InboxDir, e.Name())
		channels, candidates, err := w.ingestFile(path)
		if err != nil {
			report.Failed++
			if w.metrics != nil {
				w.metrics.IncIngested("failed")
			}
			w.log.Error("ingest failed, file left for retry",
				slog.String("file", path),
				slog.String("error", err.Error()))
			continue
		}

		report.Processed++
		report.ChannelsAdded += channels
		report.CandidatesAdded += candidates
		if w.metrics != nil {
			w.metrics.IncIngested("ok")
		}
		w.log.Info("playlist ingested",
			slog.String("file", path),
			slog.Int("channels_added", channels),
			slog.Int("candidates_added", candidates))
	}

	return report, nil
}

// ingestFile parses path, merges it into the backing document and removes
// the source.
func (w *IngestWatcher) ingestFile(path string) (channels, candidates int, err error) {
	parsed, err := ParseFile(path, w.cfg.LabelAttribute)
	if err != nil {
		return 0, 0, err
	}

	err = w.store.Update(func(m *ChannelMapping) bool {
		before := m.Len()
		candidates = m.Merge(parsed)
		channels = m.Len() - before
		return candidates > 0 || channels > 0
	})
	if err != nil {
		return 0, 0, fmt.Errorf("merge %s: %w", filepath.Base(path), err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return channels, candidates, fmt.Errorf("remove consumed file: %w", err)
	}
	return channels, candidates, nil
}

// ParseFile parses the playlist at path. Read errors are reported as
// ErrIngestParseFailed.
func ParseFile(path, attr string) (*ChannelMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestParseFailed, err)
	}
	defer f.Close()

	m, err := Parse(f, attr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIngestParseFailed, filepath.Base(path), err)
	}
	return m, nil
}

func isPlaylistFile(name string) bool {
	return slices.Contains(playlistExtensions, strings.ToLower(filepath.Ext(name)))
}
