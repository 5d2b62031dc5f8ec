package failover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is the outcome of a single liveness check.
type ProbeResult int

const (
	ProbeDead ProbeResult = iota
	ProbeAlive
	ProbeTimeout
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeAlive:
		return "alive"
	case ProbeTimeout:
		return "timeout"
	default:
		return "dead"
	}
}

// Prober checks whether a stream URL is currently serving. Implementations
// must return within roughly timeout. A non-nil error means the check could
// not be carried out; the result is then ProbeDead.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) (ProbeResult, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, url string, timeout time.Duration) (ProbeResult, error)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, url string, timeout time.Duration) (ProbeResult, error) {
	return f(ctx, url, timeout)
}

const (
	DefaultFFmpegPath = "ffmpeg"
	// DefaultDeadSignature is what ffmpeg prints when it cannot read the input.
	DefaultDeadSignature = "Input/output error"
	DefaultReadDuration  = 5 * time.Second
)

// FFmpegProber probes a stream by asking ffmpeg to decode a few seconds of
// it into the null muxer.
type FFmpegProber struct {
	// Path is the ffmpeg binary. Defaults to DefaultFFmpegPath.
	Path string
	// ReadDuration is how much of the stream ffmpeg reads. Defaults to
	// DefaultReadDuration.
	ReadDuration time.Duration
	// DeadSignature marks a dead stream when found in ffmpeg's stderr.
	// Defaults to DefaultDeadSignature.
	DeadSignature string
}

// NewFFmpegProber returns a prober using path (or DefaultFFmpegPath when empty).
func NewFFmpegProber(path string, readDuration time.Duration) *FFmpegProber {
	return &FFmpegProber{Path: path, ReadDuration: readDuration}
}

// Probe implements Prober.
func (p *FFmpegProber) Probe(ctx context.Context, url string, timeout time.Duration) (ProbeResult, error) {
	bin := p.Path
	if bin == "" {
		bin = DefaultFFmpegPath
	}
	read := p.ReadDuration
	if read <= 0 {
		read = DefaultReadDuration
	}
	signature := p.DeadSignature
	if signature == "" {
		signature = DefaultDeadSignature
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-i", url,
		"-t", strconv.FormatFloat(read.Seconds(), 'f', -1, 64),
		"-f", "null",
		"-",
	}
	// #nosec G204 - binary comes from configuration, url is passed as a single argument
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Do not wait on grandchildren still holding stderr after a kill.
	cmd.WaitDelay = time.Second

	err := cmd.Run()

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return ProbeTimeout, nil
	case ctxErr != nil:
		return ProbeDead, fmt.Errorf("%w: %v", ErrProbeFailed, ctxErr)
	}
	if strings.Contains(stderr.String(), signature) {
		return ProbeDead, nil
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Binary missing or not executable.
		return ProbeDead, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return ProbeAlive, nil
}
