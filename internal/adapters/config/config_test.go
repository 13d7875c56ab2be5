package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker != "" || cfg.Aliases == nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "rrp", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := []byte("" +
		"broker = \"mqtt://jukebox.lan:1883\"\n" +
		"node = \"den\"\n" +
		"user_id = \"42\"\n" +
		"user_name = \"frans\"\n" +
		"\n" +
		"[aliases]\n" +
		"den = \"jukebox\"\n" +
		"\n" +
		"[auth]\n" +
		"user = \"rrp\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker != "mqtt://jukebox.lan:1883" || cfg.Node != "den" || cfg.UserName != "frans" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Aliases["den"] != "jukebox" || cfg.Auth.User != "rrp" {
		t.Fatalf("unexpected nested config %+v", cfg)
	}
}
