package failover

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"channel-failover/internal/platform/metrics"

	"github.com/fsnotify/fsnotify"
)

// debounceDuration coalesces bursts of filesystem events (editors and
// atomic renames emit several per save) into one reload.
const debounceDuration = 500 * time.Millisecond

// ReloadLoop keeps the served mapping and the playlist artifact in step
// with the backing document.
type ReloadLoop struct {
	svc      *Service
	interval time.Duration
	// watchPath, when set, is watched with fsnotify to reload early. Polling
	// stays authoritative.
	watchPath string
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewReloadLoop returns a loop polling every interval (DefaultPollInterval
// when <= 0). watchPath may be empty to disable change notifications.
// Metrics may be nil.
func NewReloadLoop(svc *Service, interval time.Duration, watchPath string, log *slog.Logger, m *metrics.Metrics) *ReloadLoop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ReloadLoop{svc: svc, interval: interval, watchPath: watchPath, log: log, metrics: m}
}

// Tick reloads the mapping and regenerates the artifact when it changed.
// It reports whether the artifact was regenerated.
func (l *ReloadLoop) Tick() bool {
	changed, err := l.svc.Store().Reload()
	if err != nil {
		l.observe("error")
		l.log.Warn("mapping reload failed", slog.String("error", err.Error()))
		return false
	}
	if !changed {
		return false
	}

	l.observe("changed")
	l.log.Info("mapping changed, regenerating playlist",
		slog.Time("modified", l.svc.Store().Watermark()))
	if err := l.svc.Regenerate(); err != nil {
		l.log.Error("playlist regeneration failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Run ticks every interval, and shortly after the watched document changes,
// until ctx is done.
func (l *ReloadLoop) Run(ctx context.Context) error {
	events := l.watch(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("reload loop stopped")
			return nil
		case <-ticker.C:
			l.Tick()
		case <-events:
			if debounce == nil {
				debounce = time.NewTimer(debounceDuration)
			} else {
				debounce.Reset(debounceDuration)
			}
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			l.Tick()
		}
	}
}

// watch returns a channel signalled on changes to the watched document.
// It returns nil (never ready) when watching is disabled or unavailable.
func (l *ReloadLoop) watch(ctx context.Context) <-chan struct{} {
	if l.watchPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.Warn("file watcher unavailable, polling only", slog.String("error", err.Error()))
		return nil
	}
	// Watch the directory: atomic replaces swap the inode under the file.
	dir := filepath.Dir(l.watchPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		l.log.Warn("watch mapping dir failed, polling only",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return nil
	}

	out := make(chan struct{}, 1)
	target := filepath.Clean(l.watchPath)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log.Warn("file watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	l.log.Info("watching mapping document", slog.String("path", l.watchPath))
	return out
}

func (l *ReloadLoop) observe(outcome string) {
	if l.metrics != nil {
		l.metrics.IncReloads(outcome)
	}
}
