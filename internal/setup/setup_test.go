package setup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/notify"
	"github.com/go-sod/weld/internal/scrape"
)

type testConfig struct {
	Mode       string `envconfig:"WELD_SVC_MODE" default:"COLLECT"`
	Dispatcher dispatcher.Config
	Database   database.Config
	Notify     notify.Config
	Scrape     scrape.Config
}

func (c *testConfig) SvcMode() string                       { return c.Mode }
func (c *testConfig) DispatcherConfig() *dispatcher.Config { return &c.Dispatcher }
func (c *testConfig) DatabaseConfig() *database.Config     { return &c.Database }
func (c *testConfig) NotifyConfig() *notify.Config         { return &c.Notify }
func (c *testConfig) ScrapeConfig() *scrape.Config         { return &c.Scrape }

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		scrapper bool
		wantErr  bool
	}{
		{name: "collect", mode: SvcModeCollect},
		{name: "scrape", mode: SvcModeScrape, scrapper: true},
		{name: "unknown_mode", mode: "PUSH", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("WELD_SVC_MODE", test.mode)
			t.Setenv("WELD_DB_FILE", filepath.Join(t.TempDir(), "weld.db"))
			ctx := context.Background()

			env, err := Setup(ctx, &testConfig{})
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() {
				assert.NoError(t, env.Close(ctx))
			}()

			assert.NotNil(t, env.Database())
			assert.NotNil(t, env.ProvideNotifier())
			assert.NotNil(t, env.ProvideDispatcher())
			assert.Equal(t, test.scrapper, env.ProvideScrapper() != nil)

			shutdownCh := make(chan error, 2)
			notifier, err := env.ProvideNotifier()(shutdownCh)
			require.NoError(t, err)
			_, err = env.ProvideDispatcher()(notifier, shutdownCh)
			require.NoError(t, err)
		})
	}
}
