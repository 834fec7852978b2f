package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ProxyURL)
	assert.Equal(t, 15*time.Second, c.RequestTimeout)
	assert.Equal(t, "truecam.db", c.DatabaseDSN)
	assert.Equal(t, time.Hour, c.SignedURLTTL)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.RemoteBlobsEnabled())
	assert.False(t, c.LedgerEnabled())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"truecam"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ProxyURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"proxy_url": "http://json:1",
		"actor_id":  "from-json",
		"s3_bucket": "evidence",
	})
	os.Args = []string{"truecam", "-c", path, "-u", "http://flag:2"}

	cfg := LoadConfig()
	assert.Equal(t, "http://flag:2", cfg.ProxyURL)
	assert.Equal(t, "from-json", cfg.ActorID)
	assert.True(t, cfg.RemoteBlobsEnabled())
}
