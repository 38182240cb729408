package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("Expected :8080, got %s", cfg.ServerAddr)
	}
	if cfg.PortalURL != "http://localhost:8080" {
		t.Errorf("Expected default portal URL, got %s", cfg.PortalURL)
	}
	if cfg.JWTSecret == "" {
		t.Error("Expected a development JWT secret fallback")
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("Expected 15s read timeout, got %s", cfg.ReadTimeout)
	}
	if cfg.MaxUploadSize != 20<<20 {
		t.Errorf("Expected 20MB upload cap, got %d", cfg.MaxUploadSize)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("PORTAL_URL", "https://portal.example.gov")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "5")

	cfg := Load()

	if cfg.ServerAddr != ":9999" {
		t.Errorf("Expected :9999, got %s", cfg.ServerAddr)
	}
	if cfg.PortalURL != "https://portal.example.gov" {
		t.Errorf("Expected env portal URL, got %s", cfg.PortalURL)
	}
	if cfg.MaxUploadSize != 5<<20 {
		t.Errorf("Expected 5MB cap, got %d", cfg.MaxUploadSize)
	}
}

func TestYAMLFileLoaded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	data := []byte("server_addr: \":7070\"\nportal_url: \"http://portal.test\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg := Load()

	if cfg.ServerAddr != ":7070" {
		t.Errorf("Expected :7070 from yaml, got %s", cfg.ServerAddr)
	}
	if cfg.PortalURL != "http://portal.test" {
		t.Errorf("Expected yaml portal URL, got %s", cfg.PortalURL)
	}
}

func TestDBMaxConnectionsFallback(t *testing.T) {
	cfg := &Config{}
	if got := cfg.DBMaxConnections(); got != 20 {
		t.Errorf("Expected fallback of 20, got %d", got)
	}
	cfg.Database.MaxConnections = 7
	if got := cfg.DBMaxConnections(); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
}
