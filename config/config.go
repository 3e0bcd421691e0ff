package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// Config is the full runtime configuration, loaded from the environment
// with optional .env overrides in development.
type Config struct {
	Env        string // "development" or "production"
	ListenAddr string

	AccessSecret  string
	RefreshSecret string
	Issuer        string

	RedisURL string // empty selects the in-memory stores

	Domain    string
	AppURI    string
	Statement string
	ChainID   string

	ChallengeTTL   time.Duration
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	AuditRetention time.Duration
	SweepInterval  time.Duration

	Clients []core.Client
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first without overriding real env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("SSO_ENV", "development"),
		ListenAddr:     getEnv("SSO_LISTEN_ADDR", ":9000"),
		AccessSecret:   os.Getenv("SSO_ACCESS_SECRET"),
		RefreshSecret:  os.Getenv("SSO_REFRESH_SECRET"),
		Issuer:         getEnv("SSO_ISSUER", "polkadot-sso"),
		RedisURL:       os.Getenv("REDIS_URL"),
		Domain:         getEnv("SSO_DOMAIN", "localhost"),
		AppURI:         getEnv("SSO_APP_URI", "http://localhost:9000"),
		Statement:      os.Getenv("SSO_STATEMENT"),
		ChainID:        getEnv("SSO_CHAIN_ID", "polkadot"),
		ChallengeTTL:   getDuration("SSO_CHALLENGE_TTL", 5*time.Minute),
		AccessTTL:      getDuration("SSO_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:     getDuration("SSO_REFRESH_TTL", 7*24*time.Hour),
		AuditRetention: getDuration("SSO_AUDIT_RETENTION", 30*24*time.Hour),
		SweepInterval:  getDuration("SSO_SWEEP_INTERVAL", 5*time.Minute),
	}

	clients, err := parseClients(os.Getenv("SSO_CLIENTS"))
	if err != nil {
		return nil, err
	}
	cfg.Clients = clients

	if cfg.Env == "development" {
		cfg.applyDevelopmentDefaults()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) applyDevelopmentDefaults() {
	if c.AccessSecret == "" {
		c.AccessSecret = "dev-only-access-signing-key-f3c1a89d7e24"
	}
	if c.RefreshSecret == "" {
		c.RefreshSecret = "dev-only-refresh-signing-key-d81f5c2a7b"
	}
	if len(c.Clients) == 0 {
		c.Clients = []core.Client{{
			ID:          "demo-client",
			Name:        "Demo Client",
			RedirectURL: "http://localhost:3000/callback",
		}}
	}
}

func (c *Config) validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return fmt.Errorf("SSO_ACCESS_SECRET and SSO_REFRESH_SECRET are required outside development")
	}
	if len(c.Clients) == 0 {
		return fmt.Errorf("SSO_CLIENTS must register at least one client outside development")
	}
	for _, client := range c.Clients {
		if client.ID == "" {
			return fmt.Errorf("SSO_CLIENTS entry is missing client_id")
		}
	}
	if c.ChallengeTTL <= 0 || c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token and challenge TTLs must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("refresh TTL must exceed access TTL")
	}
	return nil
}

func parseClients(raw string) ([]core.Client, error) {
	if raw == "" {
		return nil, nil
	}
	var clients []core.Client
	if err := json.Unmarshal([]byte(raw), &clients); err != nil {
		return nil, fmt.Errorf("failed to parse SSO_CLIENTS: %w", err)
	}
	return clients, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Accept plain seconds as well.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
