package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("FAILOVER_TEST_VALUE", "set")
	if got := GetEnv("FAILOVER_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("GetEnv = %q", got)
	}
	t.Setenv("FAILOVER_TEST_VALUE", "")
	if got := GetEnv("FAILOVER_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("empty value should fall back, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FAILOVER_TEST_INT", "42")
	if got := GetEnvInt("FAILOVER_TEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt = %d", got)
	}
	t.Setenv("FAILOVER_TEST_INT", "many")
	if got := GetEnvInt("FAILOVER_TEST_INT", 1); got != 1 {
		t.Errorf("invalid int should fall back, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      7 * time.Second,
		"250ms": 250 * time.Millisecond,
		"15":    15 * time.Second,
		"soon":  7 * time.Second,
	}
	for in, want := range cases {
		t.Setenv("FAILOVER_TEST_DUR", in)
		if got := GetEnvDuration("FAILOVER_TEST_DUR", 7*time.Second); got != want {
			t.Errorf("GetEnvDuration(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCleanBaseURL(t *testing.T) {
	got, err := CleanBaseURL("http://provider.example:8080/live/")
	if err != nil || got != "http://provider.example:8080/live" {
		t.Errorf("CleanBaseURL = %q, %v", got, err)
	}
	for _, bad := range []string{"", "provider.example", "ftp://provider.example"} {
		if _, err := CleanBaseURL(bad); !errors.Is(err, ErrConfigInvalid) {
			t.Errorf("CleanBaseURL(%q) err = %v, want ErrConfigInvalid", bad, err)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("FAILOVER_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FAILOVER_TEST_DOTENV", "")
	os.Unsetenv("FAILOVER_TEST_DOTENV")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("FAILOVER_TEST_DOTENV"); got != "from-file" {
		t.Errorf("value = %q", got)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("missing file should be reported")
	}
}

// clearEnv blanks every variable FromEnv reads so the host environment
// does not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PROVIDER_BASE_URL", "SELF_BASE_URL", "WEB_HOSTNAME", "WEB_PROTOCOL", "SCC_PLAYLIST_PORT",
		"LISTEN_HOST", "SCC_PORT", "PLAYLIST_DIR", "PLAYLIST_NAME", "MAPPING_PATH", "INBOX_DIR",
		"ARTIFACT_PATH", "POLL_INTERVAL", "PROBE_TIMEOUT", "PROBE_READ", "FFMPEG_PATH",
		"CHANNEL_TAG", "INGEST_SETTLE", "PROXY_RATE_LIMIT", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_BASE_URL", "http://provider.example/live/user/pass/")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if s.ProviderBaseURL != "http://provider.example/live/user/pass" {
		t.Errorf("ProviderBaseURL = %q", s.ProviderBaseURL)
	}
	if s.SelfBaseURL != "http://127.0.0.1" {
		t.Errorf("SelfBaseURL = %q", s.SelfBaseURL)
	}
	if s.ListenAddr != "0.0.0.0:80" {
		t.Errorf("ListenAddr = %q", s.ListenAddr)
	}
	if s.MappingPath != filepath.Join("playlist", "playlist.json") {
		t.Errorf("MappingPath = %q", s.MappingPath)
	}
	if s.InboxDir != filepath.Join("playlist", "converter") {
		t.Errorf("InboxDir = %q", s.InboxDir)
	}
	if s.PollInterval != 5*time.Second || s.ProbeTimeout != 15*time.Second {
		t.Errorf("intervals = %v / %v", s.PollInterval, s.ProbeTimeout)
	}
	if s.LabelAttribute != "tvg-name" || s.PlaylistName != "playlist.m3u" {
		t.Errorf("LabelAttribute = %q PlaylistName = %q", s.LabelAttribute, s.PlaylistName)
	}
}

func TestFromEnv_self_url_parts(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_BASE_URL", "http://provider.example")
	t.Setenv("WEB_PROTOCOL", "https")
	t.Setenv("WEB_HOSTNAME", "tv.example")
	t.Setenv("SCC_PLAYLIST_PORT", "8443")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if s.SelfBaseURL != "https://tv.example:8443" {
		t.Errorf("SelfBaseURL = %q", s.SelfBaseURL)
	}
}

func TestFromEnv_invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing provider":  {},
		"schemeless":        {"PROVIDER_BASE_URL": "provider.example"},
		"nested playlist":   {"PROVIDER_BASE_URL": "http://p", "PLAYLIST_NAME": "a/b.m3u"},
		"zero poll":         {"PROVIDER_BASE_URL": "http://p", "POLL_INTERVAL": "0s"},
		"negative timeout":  {"PROVIDER_BASE_URL": "http://p", "PROBE_TIMEOUT": "-1s"},
		"bad self base URL": {"PROVIDER_BASE_URL": "http://p", "SELF_BASE_URL": "self.example"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}
