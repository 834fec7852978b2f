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
//	-u string   intermediary base URL
//	-t int      per-call provider timeout (seconds)
//	-d string   local SQLite database path
//	-a string   actor id used for remote replication
//	-l string   PostgreSQL DSN of the remote ledger
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g. "http://127.0.0.1:9000")
//	-k string   S3 access key
//	-p string   S3 secret key
//	-s int      signed read URL lifetime (minutes)
//	-v string   log level (debug, info, warn, error)
//
// Arguments not declared here are skipped (see flagx.ParseKnown).
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ProxyURL, "u", cfg.ProxyURL, "intermediary base URL")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "provider call timeout (in seconds)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local database path")
	fs.StringVar(&cfg.ActorID, "a", cfg.ActorID, "actor id for remote replication")
	fs.StringVar(&cfg.LedgerDSN, "l", cfg.LedgerDSN, "remote ledger DSN")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.S3AccessKey, "k", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	signedURLTTL := fs.Int("s", int(cfg.SignedURLTTL.Minutes()), "signed URL lifetime (in minutes)")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.SignedURLTTL = time.Duration(*signedURLTTL) * time.Minute
}
