package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL || cfg.WSURL != DefaultWSURL {
		t.Fatalf("unexpected endpoints: %s %s", cfg.APIURL, cfg.WSURL)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Fatalf("unexpected upload ceiling %d", cfg.MaxUploadBytes)
	}
	if cfg.ReconnectAttempts != 5 || cfg.ReconnectDelay != time.Second || cfg.ReconnectDelayMax != 5*time.Second {
		t.Fatalf("unexpected reconnect policy %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "momentify.yaml")
	content := "apiURL: https://api.example.com\nwsURL: https://ws.example.com\nreconnectDelay: 2s\nmaxUploadBytes: 1024\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MOMENTIFY_WS_URL", "wss://live.example.com")
	t.Setenv("MOMENTIFY_RECONNECT_ATTEMPTS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Fatalf("file value not applied: %s", cfg.APIURL)
	}
	if cfg.WSURL != "wss://live.example.com" {
		t.Fatalf("env override not applied: %s", cfg.WSURL)
	}
	if cfg.ReconnectAttempts != 3 || cfg.ReconnectDelay != 2*time.Second {
		t.Fatalf("unexpected reconnect policy: %+v", cfg)
	}
	// Max delay never drops below the base delay.
	if cfg.ReconnectDelayMax != 5*time.Second {
		t.Fatalf("unexpected max delay %s", cfg.ReconnectDelayMax)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected upload ceiling %d", cfg.MaxUploadBytes)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing config file should not fail: %v", err)
	}
}

func TestLoadRejectsBadURL(t *testing.T) {
	t.Setenv("MOMENTIFY_API_URL", "ftp://example.com")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unsupported scheme to fail")
	}
}
