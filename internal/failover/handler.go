package failover

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"channel-failover/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const playlistContentType = "audio/x-mpegurl"

// Handler exposes the failover HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Proxy handles GET /proxy/{channel}: 302 to the first live candidate, 404
// when there is none.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if channel == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	upstream, err := h.svc.Resolve(r.Context(), channel)
	if err != nil {
		if !errors.Is(err, ErrChannelNotFound) {
			h.log.Error("resolve failed", slog.String("channel", channel), slog.String("error", err.Error()))
		}
		http.Error(w, "URL not found", http.StatusNotFound)
		return
	}

	h.log.Info("redirecting",
		slog.String("channel", channel),
		slog.String("upstream", upstream))
	http.Redirect(w, r, upstream, http.StatusFound)
}

// Playlist handles GET /{playlist name}: the generated playlist artifact.
func (h *Handler) Playlist(w http.ResponseWriter, r *http.Request) {
	body, err := h.svc.Playlist()
	if err != nil {
		h.log.Error("read playlist failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	if h.metrics != nil {
		h.metrics.IncPlaylistServed()
	}
}

// Channels handles GET /channels: the served mapping as JSON.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.svc.Channels()); err != nil {
		h.log.Debug("encode channels", slog.String("error", err.Error()))
	}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Routes mounts the handler's endpoints on r. playlistName is the file
// name the playlist is served under (e.g. "playlist.m3u"); proxyLimiter,
// when non-nil, wraps the redirect route.
func (h *Handler) Routes(r chi.Router, playlistName string, proxyLimiter func(http.Handler) http.Handler) {
	r.Get("/healthz", h.Healthz)
	r.Get("/channels", h.Channels)
	r.Get("/"+playlistName, h.Playlist)
	r.Group(func(r chi.Router) {
		if proxyLimiter != nil {
			r.Use(proxyLimiter)
		}
		r.Get("/proxy/{channel}", h.Proxy)
	})
}
