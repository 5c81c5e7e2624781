package config

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("WELD_CLUSTER_EPS", "0.5")
	t.Setenv("WELD_SCRAPE_TARGET_URLS", `[{"url": "http://a/points"}]`)

	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))

	assert.Equal(t, SvcModeTypeCollect, cfg.SvcMode())
	assert.Equal(t, ":8787", cfg.SrvAddr)
	assert.Equal(t, 0.5, cfg.DispatcherConfig().ClusterEps)
	assert.Equal(t, 1e-9, cfg.DispatcherConfig().Eps)
	assert.Equal(t, 5*time.Second, cfg.NotifyConfig().Interval)
	assert.Equal(t, "weld.db", cfg.DatabaseConfig().FileName)
	require.Len(t, cfg.ScrapeConfig().Targets, 1)
	assert.Equal(t, "http://a/points", cfg.ScrapeConfig().Targets[0].URL)
}
