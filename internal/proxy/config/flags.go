package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/truecam/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   listen address (e.g. ":8080")
//	-b string   provider API base URL
//	-l string   provider login (token) URL
//	-i string   client id
//	-o string   OAuth scope
//	-t int      upstream timeout (seconds)
//	-v string   log level (debug, info, warn, error)
//
// The client secret has no flag; it comes from JSON, SecretEnvVar or
// PromptSecret.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to listen on")
	fs.StringVar(&cfg.ProviderBaseURL, "b", cfg.ProviderBaseURL, "provider API base URL")
	fs.StringVar(&cfg.LoginURL, "l", cfg.LoginURL, "provider login URL")
	fs.StringVar(&cfg.ClientID, "i", cfg.ClientID, "client id")
	fs.StringVar(&cfg.Scope, "o", cfg.Scope, "OAuth scope")
	timeout := fs.Int("t", int(cfg.UpstreamTimeout.Seconds()), "upstream timeout (in seconds)")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.UpstreamTimeout = time.Duration(*timeout) * time.Second
}
