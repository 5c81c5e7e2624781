// Package config aggregates the environment configuration of weld-srv.
package config

import (
	"github.com/go-sod/weld/internal/collect"
	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/notify"
	"github.com/go-sod/weld/internal/query"
	"github.com/go-sod/weld/internal/scrape"
	"github.com/go-sod/weld/internal/setup"
)

var (
	_ setup.SvcModeConfigProvider    = (*Config)(nil)
	_ setup.DatabaseConfigProvider   = (*Config)(nil)
	_ setup.NotifierConfigProvider   = (*Config)(nil)
	_ setup.ScrapeConfigProvider     = (*Config)(nil)
	_ setup.DispatcherConfigProvider = (*Config)(nil)
)

const (
	SvcModeTypeCollect = setup.SvcModeCollect
	SvcModeTypeScrape  = setup.SvcModeScrape
)

type Config struct {
	SvcModeType    string `envconfig:"WELD_SVC_MODE" default:"COLLECT"`
	SrvAddr        string `envconfig:"WELD_ADDR" default:":8787"`
	GRPCAddr       string `envconfig:"WELD_GRPC_ADDR" default:":8788"`
	MetricsAddr    string `envconfig:"WELD_METRICS_ADDR" default:":8080"`
	MaxConnections int    `envconfig:"WELD_MAX_CONNECTIONS" default:"1024"`
	Dispatcher     dispatcher.Config
	Collect        collect.Config
	Query          query.Config
	Database       database.Config
	Scrape         scrape.Config
	Notify         notify.Config
}

func (c *Config) SvcMode() string {
	return c.SvcModeType
}

func (c *Config) DispatcherConfig() *dispatcher.Config {
	return &c.Dispatcher
}

func (c *Config) NotifyConfig() *notify.Config {
	return &c.Notify
}

func (c *Config) ScrapeConfig() *scrape.Config {
	return &c.Scrape
}

func (c *Config) DatabaseConfig() *database.Config {
	return &c.Database
}
