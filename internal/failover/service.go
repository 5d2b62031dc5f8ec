package failover

import (
	"context"
	"fmt"
	"log/slog"

	"channel-failover/internal/platform/metrics"
)

// Service ties the mapping store, the resolver and the playlist artifact
// together for the HTTP layer and the background loops.
type Service struct {
	store       *MappingStore
	resolver    *Resolver
	artifact    *Artifact
	selfBaseURL string
	log         *slog.Logger
	metrics     *metrics.Metrics
}

// NewService returns a Service. Metrics may be nil.
func NewService(store *MappingStore, resolver *Resolver, artifact *Artifact, selfBaseURL string, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:       store,
		resolver:    resolver,
		artifact:    artifact,
		selfBaseURL: selfBaseURL,
		log:         log,
		metrics:     m,
	}
}

// Store returns the mapping store.
func (s *Service) Store() *MappingStore {
	return s.store
}

// Resolve returns the upstream URL a viewer of channel name should be
// redirected to, or ErrChannelNotFound.
func (s *Service) Resolve(ctx context.Context, name string) (string, error) {
	candidate, err := s.resolver.Resolve(ctx, name, s.store.Snapshot())
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncNotFound()
		}
		return "", err
	}
	if s.metrics != nil {
		s.metrics.IncRedirects()
	}
	return s.resolver.Template().URL(candidate), nil
}

// Channels returns a snapshot of the served mapping.
func (s *Service) Channels() *ChannelMapping {
	return s.store.Snapshot()
}

// Playlist returns the current playlist artifact.
func (s *Service) Playlist() ([]byte, error) {
	return s.artifact.Read()
}

// Regenerate rewrites the playlist artifact from the served mapping.
func (s *Service) Regenerate() error {
	m := s.store.Snapshot()
	if err := s.artifact.Write(Generate(m, s.selfBaseURL)); err != nil {
		return fmt.Errorf("regenerate playlist: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetChannels(m.Len())
	}
	s.log.Info("playlist generated",
		slog.String("path", s.artifact.Path),
		slog.Int("channels", m.Len()))
	return nil
}
