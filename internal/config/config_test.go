package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("explicit missing path should error")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load with no file: %v", err)
	}
	if cfg.Service.Port != 3001 {
		t.Fatalf("default port should be 3001, got %d", cfg.Service.Port)
	}
	if cfg.Client.SaltServiceURL != "http://localhost:3001" {
		t.Fatalf("unexpected default salt service url: %q", cfg.Client.SaltServiceURL)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
service:
  port: 8080
  seed: "00000000000000000000000000000000"
  expectedIss:
    - https://accounts.google.com
client:
  clientId: client-123
  redirectUri: http://localhost:5173
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Port != 8080 {
		t.Fatalf("port not read from yaml: %d", cfg.Service.Port)
	}
	if len(cfg.Service.ExpectedIss) != 1 || cfg.Service.ExpectedIss[0] != "https://accounts.google.com" {
		t.Fatalf("expectedIss not read: %v", cfg.Service.ExpectedIss)
	}
	if cfg.Client.ClientID != "client-123" {
		t.Fatalf("clientId not read: %q", cfg.Client.ClientID)
	}
	// Defaults survive for unset fields.
	if cfg.Client.ProverURL == "" {
		t.Fatal("prover url default should survive partial yaml")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
service:
  port: 8080
  seed: from-file
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("SEED", "66726f6d2d656e76")
	t.Setenv("EXPECTED_AUD", "client-a, client-b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Port != 9090 {
		t.Fatalf("PORT env should win, got %d", cfg.Service.Port)
	}
	if cfg.Service.Seed != "66726f6d2d656e76" {
		t.Fatalf("SEED env should win, got %q", cfg.Service.Seed)
	}
	if len(cfg.Service.ExpectedAud) != 2 || cfg.Service.ExpectedAud[1] != "client-b" {
		t.Fatalf("EXPECTED_AUD not parsed: %v", cfg.Service.ExpectedAud)
	}
}

func TestBadPortEnvIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Port != 3001 {
		t.Fatalf("invalid PORT should fall back to default, got %d", cfg.Service.Port)
	}
}
