package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/truecam/internal/flagx"
	"github.com/dmitrijs2005/truecam/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "15s" or as integer nanoseconds.
type JsonConfig struct {
	ProxyURL        string         `json:"proxy_url"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	DatabaseDSN     string         `json:"database_dsn"`
	ActorID         string         `json:"actor_id"`
	LedgerDSN       string         `json:"ledger_dsn"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	S3AccessKey     string         `json:"s3_access_key"`
	S3SecretKey     string         `json:"s3_secret_key"`
	SignedURLTTL    timex.Duration `json:"signed_url_ttl"`
	DisplayCacheDir string         `json:"display_cache_dir"`
	CaseNamePrefix  string         `json:"case_name_prefix"`
	LogLevel        string         `json:"log_level"`
	LogFormat       string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Keys absent from the file leave the current values alone.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ProxyURL, jc.ProxyURL)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.ActorID, jc.ActorID)
	setString(&cfg.LedgerDSN, jc.LedgerDSN)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.DisplayCacheDir, jc.DisplayCacheDir)
	setString(&cfg.CaseNamePrefix, jc.CaseNamePrefix)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SignedURLTTL.Duration > 0 {
		cfg.SignedURLTTL = jc.SignedURLTTL.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
