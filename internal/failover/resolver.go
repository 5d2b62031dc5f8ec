package failover

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"channel-failover/internal/platform/metrics"
)

// DefaultProbeTimeout bounds a single liveness probe.
const DefaultProbeTimeout = 15 * time.Second

// idPlaceholder marks where a candidate goes inside a URL template.
const idPlaceholder = "{id}"

// URLTemplate turns a candidate identifier into a fully-qualified upstream
// URL. A template containing "{id}" has it substituted; otherwise the
// candidate is appended as a final path segment.
type URLTemplate string

// URL returns the upstream URL for candidate.
func (t URLTemplate) URL(candidate string) string {
	s := string(t)
	if strings.Contains(s, idPlaceholder) {
		return strings.ReplaceAll(s, idPlaceholder, url.PathEscape(candidate))
	}
	return strings.TrimSuffix(s, "/") + "/" + candidate
}

// Resolver picks the first live candidate of a channel.
type Resolver struct {
	prober   Prober
	template URLTemplate
	timeout  time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewResolver returns a Resolver probing candidates built from template,
// each with the given timeout (DefaultProbeTimeout when <= 0). Metrics may
// be nil.
func NewResolver(prober Prober, template URLTemplate, timeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Resolver {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Resolver{prober: prober, template: template, timeout: timeout, log: log, metrics: m}
}

// Template returns the URL template candidates are expanded with.
func (r *Resolver) Template() URLTemplate {
	return r.template
}

// Resolve probes name's candidates in list order and returns the first one
// that is alive. Candidates after it are not probed. It returns
// ErrChannelNotFound when the channel is unknown, empty, or has no live
// candidate.
//
// Probes run one after another. A probe that has started is allowed to
// finish even if ctx is cancelled; cancellation is honoured before the
// next candidate.
func (r *Resolver) Resolve(ctx context.Context, name string, mapping *ChannelMapping) (string, error) {
	candidates, ok := mapping.Candidates(name)
	if !ok || len(candidates) == 0 {
		r.log.Info("channel not in mapping", slog.String("channel", name))
		return "", ErrChannelNotFound
	}

	probeCtx := context.WithoutCancel(ctx)
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			r.log.Info("resolution abandoned",
				slog.String("channel", name),
				slog.Int("probed", i),
				slog.String("error", err.Error()))
			return "", ErrChannelNotFound
		}

		upstream := r.template.URL(candidate)
		start := time.Now()
		result, err := r.prober.Probe(probeCtx, upstream, r.timeout)
		if err != nil {
			r.log.Warn("probe failed",
				slog.String("channel", name),
				slog.String("candidate", candidate),
				slog.String("error", err.Error()))
			result = ProbeDead
		}
		if r.metrics != nil {
			r.metrics.ObserveProbe(result.String(), time.Since(start))
		}

		r.log.Debug("probe",
			slog.String("channel", name),
			slog.String("candidate", candidate),
			slog.String("result", result.String()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))

		if result == ProbeAlive {
			return candidate, nil
		}
	}

	r.log.Info("no live candidate",
		slog.String("channel", name),
		slog.Int("candidates", len(candidates)))
	return "", ErrChannelNotFound
}
