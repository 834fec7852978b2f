package config

import (
	"os"
	"time"
)

// SecretEnvVar names the environment variable holding the provider client secret.
const SecretEnvVar = "QTSP_CLIENT_SECRET"

// Config holds runtime settings for the intermediary.
//
// Fields:
//   - ListenAddr: bind address of the HTTP server.
//   - ProviderBaseURL: base URL the proxy route forwards logical paths to.
//   - LoginURL: token endpoint used for the client-credentials exchange.
//   - ClientID / ClientSecret / Scope: credentials sent to LoginURL.
//   - UpstreamTimeout: bound on each call made to the provider.
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
type Config struct {
	ListenAddr      string
	ProviderBaseURL string
	LoginURL        string
	ClientID        string
	ClientSecret    string
	Scope           string
	UpstreamTimeout time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

// LoadDefaults populates c with local-development defaults. Provider URLs
// and credentials have no defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.Scope = "token"
	c.UpstreamTimeout = 30 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// HasCredentials reports whether the client-credentials exchange can run.
func (c *Config) HasCredentials() bool {
	return c.LoginURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// LoadConfig builds a Config from defaults, the optional JSON file, the
// secret environment variable and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg, os.Getenv)
	parseFlags(cfg)
	return cfg
}

func parseEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(SecretEnvVar); v != "" {
		cfg.ClientSecret = v
	}
}
