// Package setup processes the environment configuration and builds the
// provider functions of the service components.
package setup

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/notify"
	"github.com/go-sod/weld/internal/scrape"
	"github.com/go-sod/weld/internal/srvenv"
)

const (
	SvcModeScrape  string = "SCRAPE"
	SvcModeCollect string = "COLLECT"
)

type SvcModeConfigProvider interface {
	SvcMode() string
}

type DispatcherConfigProvider interface {
	DispatcherConfig() *dispatcher.Config
}

type NotifierConfigProvider interface {
	NotifyConfig() *notify.Config
}

type ScrapeConfigProvider interface {
	ScrapeConfig() *scrape.Config
}

type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

// Setup loads config from the environment and returns the service
// environment. The caller owns the returned environment and must Close it.
func Setup(ctx context.Context, config interface{}) (*srvenv.SrvEnv, error) {
	logger := logging.FromContext(ctx)
	var serverEnvOpts []srvenv.Option
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	svcModeConfigProvider, hasMode := config.(SvcModeConfigProvider)
	if hasMode {
		switch svcModeConfigProvider.SvcMode() {
		case SvcModeCollect, SvcModeScrape:
		default:
			return nil, fmt.Errorf("unknown service mode: %s", svcModeConfigProvider.SvcMode())
		}
	}

	var db *database.DB
	if dbConfigProvider, ok := config.(DatabaseConfigProvider); ok {
		logger.Info("Configuring db")
		dbFromEnv, err := database.NewFromEnv(ctx, dbConfigProvider.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		db = dbFromEnv
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDatabase(db))
	}

	if notifyConfigProvider, ok := config.(NotifierConfigProvider); ok {
		logger.Info("Configuring notifier")
		serverEnvOpts = append(serverEnvOpts, srvenv.WithNotifier(ProvideNotifierFor(notifyConfigProvider, db)))
	}

	if dispatcherConfigProvider, ok := config.(DispatcherConfigProvider); ok {
		logger.Info("Configuring dispatcher")
		if db == nil {
			return nil, fmt.Errorf("dispatcher requires a database config")
		}
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDispatcher(ProvideDispatcherFor(dispatcherConfigProvider, db)))
	}

	if hasMode && svcModeConfigProvider.SvcMode() == SvcModeScrape {
		if scrapeConfigProvider, ok := config.(ScrapeConfigProvider); ok {
			logger.Info("Configuring scrapper")
			serverEnvOpts = append(serverEnvOpts, srvenv.WithScrapper(ProvideScrapperFor(scrapeConfigProvider)))
		}
	}
	return srvenv.New(serverEnvOpts...), nil
}

func ProvideScrapperFor(provider ScrapeConfigProvider) scrape.ProvideFn {
	cfg := provider.ScrapeConfig()
	return func(d dispatcher.Manager, shutdownCh chan<- error) (scrape.Manager, error) {
		return scrape.New(
			d,
			shutdownCh,
			scrape.WithInterval(cfg.Interval),
			scrape.WithRequestTimeout(cfg.RequestTimeout),
			scrape.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			scrape.WithTargetUrls(cfg.Targets),
		)
	}
}

func ProvideNotifierFor(provider NotifierConfigProvider, db *database.DB) notify.ProvideFn {
	cfg := provider.NotifyConfig()
	return func(shutdownCh chan<- error) (notify.Manager, error) {
		opts := []notify.Option{
			notify.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			notify.WithInterval(cfg.Interval),
			notify.WithRequestTimeout(cfg.RequestTimeout),
			notify.WithChannel(cfg.Channel),
		}
		if cfg.RedisAddr != "" {
			opts = append(opts, notify.WithPublisher(notify.NewRedisPublisher(cfg)))
		}
		return notify.New(db, shutdownCh, opts...)
	}
}

func ProvideDispatcherFor(provider DispatcherConfigProvider, db *database.DB) dispatcher.ProvideFn {
	cfg := provider.DispatcherConfig()
	return func(notifier notify.Manager, shutdownCh chan<- error) (dispatcher.Manager, error) {
		return dispatcher.New(
			db,
			notifier,
			shutdownCh,
			dispatcher.WithTolerance(cfg.Eps, cfg.ClusterEps),
			dispatcher.WithRebuildDBTime(cfg.RebuildDBTime),
			dispatcher.WithMaxPointsStored(cfg.MaxPointsStored),
			dispatcher.WithMaxStorageTime(cfg.MaxStorageTime),
			dispatcher.WithDBFlushSize(cfg.DBFlushSize),
			dispatcher.WithDBFlushTime(cfg.DBFlushTime),
			dispatcher.WithLoadConcurrency(cfg.LoadConcurrency),
		)
	}
}
