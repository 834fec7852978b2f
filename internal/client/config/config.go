package config

import "time"

// Config holds runtime settings for the TrueCam CLI.
//
// Fields:
//   - ProxyURL: base URL of the auth/proxy intermediary in front of the provider.
//   - RequestTimeout: bound applied to each provider call.
//   - DatabaseDSN: path (or DSN) of the local SQLite database.
//   - ActorID: identity used to namespace remote replicas; empty keeps captures local.
//   - LedgerDSN: PostgreSQL DSN of the remote evidence ledger; empty disables it.
//   - S3*: remote object store; an empty S3Bucket disables it.
//   - SignedURLTTL: lifetime of signed read URLs handed out for display.
type Config struct {
	ProxyURL        string
	RequestTimeout  time.Duration
	DatabaseDSN     string
	ActorID         string
	LedgerDSN       string
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
	S3AccessKey     string
	S3SecretKey     string
	SignedURLTTL    time.Duration
	DisplayCacheDir string
	CaseNamePrefix  string
	LogLevel        string
	LogFormat       string
}

// LoadDefaults populates c with local-development defaults.
func (c *Config) LoadDefaults() {
	c.ProxyURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 15 * time.Second
	c.DatabaseDSN = "truecam.db"
	c.S3Region = "us-east-1"
	c.SignedURLTTL = time.Hour
	c.DisplayCacheDir = ".truecam-display"
	c.CaseNamePrefix = "TrueCam"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// RemoteBlobsEnabled reports whether an object store is configured.
func (c *Config) RemoteBlobsEnabled() bool {
	return c.S3Bucket != ""
}

func (c *Config) LedgerEnabled() bool {
	return c.LedgerDSN != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
