package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfigInvalid is returned for configuration the process must not start with.
var ErrConfigInvalid = errors.New("invalid configuration")

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable named
// by key, or fallback if unset, empty, or unparsable. A bare integer is read
// as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// CleanBaseURL checks that raw has an http or https scheme and strips a
// trailing slash.
func CleanBaseURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: base URL is empty", ErrConfigInvalid)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", fmt.Errorf("%w: base URL %q must start with http:// or https://", ErrConfigInvalid, raw)
	}
	return strings.TrimSuffix(raw, "/"), nil
}

// Settings are the resolved runtime values.
type Settings struct {
	// ProviderBaseURL is the upstream URL template candidates expand into.
	ProviderBaseURL string
	// SelfBaseURL prefixes the links written into the generated playlist.
	SelfBaseURL string

	ListenAddr   string
	PlaylistName string
	MappingPath  string
	InboxDir     string
	ArtifactPath string

	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	ProbeRead      time.Duration
	FFmpegPath     string
	LabelAttribute string
	IngestSettle   time.Duration

	// ProxyRateLimit is the per-IP request budget per minute on /proxy; 0 disables.
	ProxyRateLimit int

	LogLevel  string
	LogFormat string
}

// FromEnv resolves Settings from the environment. It fails with
// ErrConfigInvalid when the provider base URL is missing or malformed.
func FromEnv() (Settings, error) {
	provider, err := CleanBaseURL(os.Getenv("PROVIDER_BASE_URL"))
	if err != nil {
		return Settings{}, fmt.Errorf("PROVIDER_BASE_URL: %w", err)
	}

	self := os.Getenv("SELF_BASE_URL")
	if self == "" {
		host := GetEnv("WEB_HOSTNAME", "127.0.0.1")
		if port := os.Getenv("SCC_PLAYLIST_PORT"); port != "" {
			host += ":" + port
		}
		self = GetEnv("WEB_PROTOCOL", "http") + "://" + host
	}
	self, err = CleanBaseURL(self)
	if err != nil {
		return Settings{}, fmt.Errorf("self base URL: %w", err)
	}

	playlistDir := GetEnv("PLAYLIST_DIR", "./playlist")
	playlistName := GetEnv("PLAYLIST_NAME", "playlist.m3u")
	if strings.Contains(playlistName, "/") {
		return Settings{}, fmt.Errorf("%w: PLAYLIST_NAME %q must be a bare file name", ErrConfigInvalid, playlistName)
	}

	s := Settings{
		ProviderBaseURL: provider,
		SelfBaseURL:     self,
		ListenAddr:      GetEnv("LISTEN_HOST", "0.0.0.0") + ":" + GetEnv("SCC_PORT", "80"),
		PlaylistName:    playlistName,
		MappingPath:     GetEnv("MAPPING_PATH", filepath.Join(playlistDir, "playlist.json")),
		InboxDir:        GetEnv("INBOX_DIR", filepath.Join(playlistDir, "converter")),
		ArtifactPath:    GetEnv("ARTIFACT_PATH", playlistName),
		PollInterval:    GetEnvDuration("POLL_INTERVAL", 5*time.Second),
		ProbeTimeout:    GetEnvDuration("PROBE_TIMEOUT", 15*time.Second),
		ProbeRead:       GetEnvDuration("PROBE_READ", 5*time.Second),
		FFmpegPath:      GetEnv("FFMPEG_PATH", "ffmpeg"),
		LabelAttribute:  GetEnv("CHANNEL_TAG", "tvg-name"),
		IngestSettle:    GetEnvDuration("INGEST_SETTLE", 2*time.Second),
		ProxyRateLimit:  GetEnvInt("PROXY_RATE_LIMIT", 120),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		LogFormat:       GetEnv("LOG_FORMAT", "json"),
	}
	if s.PollInterval <= 0 {
		return Settings{}, fmt.Errorf("%w: POLL_INTERVAL must be positive", ErrConfigInvalid)
	}
	if s.ProbeTimeout <= 0 {
		return Settings{}, fmt.Errorf("%w: PROBE_TIMEOUT must be positive", ErrConfigInvalid)
	}
	return s, nil
}
