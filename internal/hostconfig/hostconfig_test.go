package hostconfig

import (
	"os"
	"path/filepath"
	"testing"

	"mailcache/internal/cachemode"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "cache:\n  directory: /tmp/example-cache\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Mode != "ACCELERATED" {
		t.Fatalf("expected default mode ACCELERATED, got %q", cfg.Cache.Mode)
	}
	if cfg.IMAP.Port != 993 {
		t.Fatalf("expected default IMAP port 993, got %d", cfg.IMAP.Port)
	}
}

func TestLoadRejectsOnlineWithoutHost(t *testing.T) {
	path := writeConfig(t, "cache:\n  directory: /tmp/example-cache\n  mode: ONLINE\n")
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error for ONLINE mode without imap.host")
	}
}

func TestLoadParsesModeAndIMAP(t *testing.T) {
	path := writeConfig(t, ""+
		"cache:\n"+
		"  directory: /tmp/example-cache\n"+
		"  mode: online\n"+
		"imap:\n"+
		"  host: imap.example.com\n"+
		"  user: user@example.com\n"+
		"  ssl: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mode, err := cfg.Mode()
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if mode != cachemode.Online {
		t.Fatalf("expected ONLINE mode, got %v", mode)
	}
	if cfg.IMAP.Host != "imap.example.com" {
		t.Fatalf("unexpected host: %q", cfg.IMAP.Host)
	}
}
