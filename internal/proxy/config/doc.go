// Package config loads settings for the QTSP intermediary: built-in
// defaults, an optional JSON file, the QTSP_CLIENT_SECRET environment
// variable and command-line flags, in that order.
package config
