package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/truecam/internal/flagx"
	"github.com/dmitrijs2005/truecam/internal/timex"
)

// JsonConfig is the on-disk shape of the intermediary configuration.
type JsonConfig struct {
	ListenAddr      string         `json:"listen_addr"`
	ProviderBaseURL string         `json:"provider_base_url"`
	LoginURL        string         `json:"login_url"`
	ClientID        string         `json:"client_id"`
	ClientSecret    string         `json:"client_secret"`
	Scope           string         `json:"scope"`
	UpstreamTimeout timex.Duration `json:"upstream_timeout"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
	LogLevel        string         `json:"log_level"`
	LogFormat       string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c or -config, if any.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.ListenAddr, jc.ListenAddr)
	setString(&cfg.ProviderBaseURL, jc.ProviderBaseURL)
	setString(&cfg.LoginURL, jc.LoginURL)
	setString(&cfg.ClientID, jc.ClientID)
	setString(&cfg.ClientSecret, jc.ClientSecret)
	setString(&cfg.Scope, jc.Scope)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.UpstreamTimeout.Duration > 0 {
		cfg.UpstreamTimeout = jc.UpstreamTimeout.Duration
	}
	if jc.ShutdownTimeout.Duration > 0 {
		cfg.ShutdownTimeout = jc.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
