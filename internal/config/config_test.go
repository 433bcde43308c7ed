package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rustcast.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadParsesRequiredAndOptionalKeys(t *testing.T) {
	path := writeConfig(t, `
listen = "0.0.0.0:8000"
stream_dump = "/var/dump/{uuid}.mp3"
session_cookie = "rc_session"

[webhooks]
stream_start = "https://example.com/start"
stream_end = "https://example.com/end"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Listen != "0.0.0.0:8000" {
		t.Errorf("Listen = %q", c.Listen)
	}
	if c.StreamDump != "/var/dump/{uuid}.mp3" {
		t.Errorf("StreamDump = %q", c.StreamDump)
	}
	if c.SessionCookie != "rc_session" {
		t.Errorf("SessionCookie = %q", c.SessionCookie)
	}
	if c.Webhooks.StreamStart != "https://example.com/start" {
		t.Errorf("Webhooks.StreamStart = %q", c.Webhooks.StreamStart)
	}
	if c.Webhooks.ListenerStart != "" {
		t.Errorf("Webhooks.ListenerStart should default to empty, got %q", c.Webhooks.ListenerStart)
	}
}

func TestLoadRejectsMissingRequiredKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing listen", `stream_dump = "/var/dump/{uuid}.mp3"`},
		{"missing stream_dump", `listen = "0.0.0.0:8000"`},
		{"empty file", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			if _, err := Load(path); err == nil {
				t.Fatal("Load() should fail validation")
			}
		})
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/rustcast.toml"); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
