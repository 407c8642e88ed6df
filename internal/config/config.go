// Package config loads the daemon and login-client configuration from
// YAML with environment overrides. Environment always wins over file
// values so deployments can inject secrets without touching config
// files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultPort = 3001

// Service configures the derivation daemon.
type Service struct {
	Port         int      `yaml:"port"`
	Seed         string   `yaml:"seed"`
	SeedMnemonic string   `yaml:"seedMnemonic"`
	ExpectedIss  []string `yaml:"expectedIss"`
	ExpectedAud  []string `yaml:"expectedAud"`
	LogLevel     string   `yaml:"logLevel"`
	RateRPS      float64  `yaml:"rateRps"`
	RateBurst    int      `yaml:"rateBurst"`
}

// Client configures the login pipeline.
type Client struct {
	ClientID          string `yaml:"clientId"`
	RedirectURI       string `yaml:"redirectUri"`
	AuthorizeEndpoint string `yaml:"authorizeEndpoint"`
	SaltServiceURL    string `yaml:"saltServiceUrl"`
	ProverURL         string `yaml:"proverUrl"`
	FullnodeURL       string `yaml:"fullnodeUrl"`
	SessionPath       string `yaml:"sessionPath"`
	SessionPassphrase string `yaml:"sessionPassphrase"`
	LogLevel          string `yaml:"logLevel"`
}

type File struct {
	Service Service `yaml:"service"`
	Client  Client  `yaml:"client"`
}

func defaults() File {
	return File{
		Service: Service{
			Port:     defaultPort,
			LogLevel: "info",
		},
		Client: Client{
			AuthorizeEndpoint: "https://accounts.google.com/o/oauth2/v2/auth",
			SaltServiceURL:    fmt.Sprintf("http://localhost:%d", defaultPort),
			ProverURL:         "https://prover-dev.mystenlabs.com/v1",
			FullnodeURL:       "https://fullnode.devnet.sui.io:443",
			LogLevel:          "info",
		},
	}
}

// Load reads the file at path (optional; defaults apply when empty or
// missing) and applies environment overrides on top.
func Load(path string) (File, error) {
	cfg := defaults()

	candidates := []string{path}
	if path == "" {
		candidates = []string{"configs/config.yaml"}
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if path == "" && os.IsNotExist(err) {
				continue
			}
			if path == "" {
				continue
			}
			return File{}, fmt.Errorf("read config %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return File{}, fmt.Errorf("parse config %s: %w", candidate, err)
		}
	}

	applyEnvOverrides(&cfg)
	if cfg.Service.Port <= 0 {
		cfg.Service.Port = defaultPort
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *File) {
	setString(&cfg.Service.Seed, "SEED")
	setString(&cfg.Service.SeedMnemonic, "SEED_MNEMONIC")
	setList(&cfg.Service.ExpectedIss, "EXPECTED_ISS")
	setList(&cfg.Service.ExpectedAud, "EXPECTED_AUD")
	setString(&cfg.Service.LogLevel, "LOG_LEVEL")
	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 {
			cfg.Service.Port = port
		}
	}

	setString(&cfg.Client.ClientID, "CLIENT_ID")
	setString(&cfg.Client.RedirectURI, "REDIRECT_URI")
	setString(&cfg.Client.AuthorizeEndpoint, "AUTHORIZE_ENDPOINT")
	setString(&cfg.Client.SaltServiceURL, "SALT_SERVICE_URL")
	setString(&cfg.Client.ProverURL, "PROVER_URL")
	setString(&cfg.Client.FullnodeURL, "FULLNODE_URL")
	setString(&cfg.Client.SessionPath, "SESSION_PATH")
	setString(&cfg.Client.SessionPassphrase, "SESSION_PASSPHRASE")
	setString(&cfg.Client.LogLevel, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
