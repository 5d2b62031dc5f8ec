package failover

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"channel-failover/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber answers from a fixed table keyed by URL and records the
// order in which URLs were probed. Unknown URLs are dead.
type scriptedProber struct {
	mu      sync.Mutex
	answers map[string]ProbeResult
	errs    map[string]error
	calls   []string
}

func newScriptedProber(answers map[string]ProbeResult) *scriptedProber {
	return &scriptedProber{answers: answers, errs: map[string]error{}}
}

func (p *scriptedProber) Probe(_ context.Context, url string, _ time.Duration) (ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	if err, ok := p.errs[url]; ok {
		return ProbeAlive, err
	}
	return p.answers[url], nil
}

func (p *scriptedProber) probed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func mappingOf(pairs ...any) *ChannelMapping {
	m := NewChannelMapping()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].([]string))
	}
	return m
}

func TestURLTemplate_URL(t *testing.T) {
	cases := []struct {
		tmpl URLTemplate
		id   string
		want string
	}{
		{"http://provider.example:8080/live/user/pass", "OMG1337", "http://provider.example:8080/live/user/pass/OMG1337"},
		{"http://provider.example/live/", "id1", "http://provider.example/live/id1"},
		{"http://provider.example/live/{id}.ts", "id1", "http://provider.example/live/id1.ts"},
		{"http://provider.example/{id}?x={id}", "a b", "http://provider.example/a%20b?x=a%20b"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.tmpl.URL(tc.id), "template %q", tc.tmpl)
	}
}

func TestResolver_first_alive_wins_and_stops(t *testing.T) {
	prober := newScriptedProber(map[string]ProbeResult{
		"http://up/a": ProbeDead,
		"http://up/b": ProbeAlive,
		"http://up/c": ProbeAlive,
	})
	r := NewResolver(prober, "http://up", time.Second, logger.Discard(), nil)

	got, err := r.Resolve(context.Background(), "news", mappingOf("news", []string{"a", "b", "c"}))
	require.NoError(t, err)
	assert.Equal(t, "b", got)
	assert.Equal(t, []string{"http://up/a", "http://up/b"}, prober.probed(), "c must never be probed")
}

func TestResolver_channel_scenarios(t *testing.T) {
	prober := newScriptedProber(map[string]ProbeResult{
		"http://up/id1": ProbeDead,
		"http://up/id2": ProbeAlive,
		"http://up/id3": ProbeDead,
	})
	r := NewResolver(prober, "http://up", time.Second, logger.Discard(), nil)
	m := mappingOf(
		"news", []string{"id1", "id2"},
		"sports", []string{"id3"},
	)

	got, err := r.Resolve(context.Background(), "news", m)
	require.NoError(t, err)
	assert.Equal(t, "id2", got)

	_, err = r.Resolve(context.Background(), "sports", m)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestResolver_not_found(t *testing.T) {
	prober := newScriptedProber(map[string]ProbeResult{
		"http://up/t1": ProbeTimeout,
		"http://up/d1": ProbeDead,
	})
	r := NewResolver(prober, "http://up", time.Second, logger.Discard(), nil)
	m := mappingOf(
		"slow", []string{"t1", "d1"},
		"empty", []string{},
	)

	t.Run("unknown_channel", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "missing", m)
		assert.ErrorIs(t, err, ErrChannelNotFound)
	})

	t.Run("empty_candidates", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "empty", m)
		assert.ErrorIs(t, err, ErrChannelNotFound)
	})

	t.Run("timeouts_and_dead", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "slow", m)
		assert.ErrorIs(t, err, ErrChannelNotFound)
	})
}

func TestResolver_probe_error_counts_as_dead(t *testing.T) {
	prober := newScriptedProber(map[string]ProbeResult{"http://up/b": ProbeAlive})
	prober.errs["http://up/a"] = errors.New("exec: ffmpeg not found")
	r := NewResolver(prober, "http://up", time.Second, logger.Discard(), nil)

	got, err := r.Resolve(context.Background(), "news", mappingOf("news", []string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestResolver_passes_timeout(t *testing.T) {
	var seen []time.Duration
	prober := ProberFunc(func(_ context.Context, _ string, timeout time.Duration) (ProbeResult, error) {
		seen = append(seen, timeout)
		return ProbeDead, nil
	})

	NewResolver(prober, "http://up", 0, logger.Discard(), nil).
		Resolve(context.Background(), "a", mappingOf("a", []string{"1"}))
	NewResolver(prober, "http://up", 250*time.Millisecond, logger.Discard(), nil).
		Resolve(context.Background(), "a", mappingOf("a", []string{"1"}))

	assert.Equal(t, []time.Duration{DefaultProbeTimeout, 250 * time.Millisecond}, seen)
}

func TestResolver_cancelled_context_stops_between_candidates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var probeCtxErr error
	calls := 0
	prober := ProberFunc(func(pctx context.Context, _ string, _ time.Duration) (ProbeResult, error) {
		calls++
		cancel()
		probeCtxErr = pctx.Err()
		return ProbeDead, nil
	})
	r := NewResolver(prober, "http://up", time.Second, logger.Discard(), nil)

	_, err := r.Resolve(ctx, "news", mappingOf("news", []string{"a", "b", "c"}))
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.Equal(t, 1, calls)
	assert.NoError(t, probeCtxErr, "a started probe must not see the caller's cancellation")
}

func TestResolver_concurrent_requests(t *testing.T) {
	prober := newScriptedProber(map[string]ProbeResult{"http://up/b": ProbeAlive})
	r := NewResolver(prober, "http://up", time.Second, logger.Discard(), nil)
	m := mappingOf("news", []string{"a", "b"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), "news", m)
			if err != nil || got != "b" {
				t.Errorf("Resolve = %q, %v", got, err)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, prober.probed(), 32)
}
