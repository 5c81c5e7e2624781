package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/go-sod/weld/internal/buildinfo"
	"github.com/go-sod/weld/internal/collect"
	"github.com/go-sod/weld/internal/config"
	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/metrics"
	"github.com/go-sod/weld/internal/query"
	"github.com/go-sod/weld/internal/server"
	"github.com/go-sod/weld/internal/setup"
	"github.com/go-sod/weld/internal/shutdown"
)

func main() {
	_, _ = fmt.Fprint(os.Stdout, buildinfo.Graffiti)
	_, _ = fmt.Fprintln(os.Stdout, buildinfo.Info.Print())

	ctx, done := shutdown.New()
	logger := logging.DefaultLogger()
	ctx = logging.WithLogger(ctx, logger)

	err := run(ctx, done)
	done()
	if err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, cancel func()) error {
	logger := logging.FromContext(ctx)
	cfg := config.Config{}
	env, err := setup.Setup(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer func() {
		if err := env.Close(context.Background()); err != nil {
			logger.Errorf("unable close environment: %v", err)
		}
	}()

	// notifier and dispatcher always report on shutdown, the scrapper in scrape mode
	shutdownCount := 2
	if cfg.SvcMode() == config.SvcModeTypeScrape {
		shutdownCount++
	}
	shutdownCh := make(chan error, shutdownCount)

	notifier, err := env.ProvideNotifier()(shutdownCh)
	if err != nil {
		return fmt.Errorf("notifier provider function error: %w", err)
	}
	manager, err := env.ProvideDispatcher()(notifier, shutdownCh)
	if err != nil {
		return fmt.Errorf("dispatcher provider function error: %w", err)
	}

	if cfg.SvcMode() == config.SvcModeTypeScrape {
		scrapper, err := env.ProvideScrapper()(manager, shutdownCh)
		if err != nil {
			return fmt.Errorf("scrapperCaller: %w", err)
		}
		if err := scrapper.Run(ctx); err != nil {
			return fmt.Errorf("scrapperRun: %w", err)
		}
	} else if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher.Run: %w", err)
	}

	mux, err := routes(ctx, &cfg, manager)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg.SrvAddr, server.WithMaxConnections(cfg.MaxConnections))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	go func() {
		if err := srv.ServeHTTPHandler(ctx, mux); err != nil {
			logger.Errorf("http server: %v", err)
			cancel()
		}
	}()

	grpcSrv, err := server.New(cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	grpcServer, healthSrv := server.NewGRPCHealthServer()
	go func() {
		if err := grpcSrv.ServeGRPC(ctx, grpcServer); err != nil {
			logger.Errorf("grpc server: %v", err)
			cancel()
		}
	}()

	metricsHandler, err := metrics.NewHandler()
	if err != nil {
		return fmt.Errorf("metrics.NewHandler: %w", err)
	}
	http.DefaultServeMux.Handle("/metrics", metricsHandler)
	metricsSrv, err := server.New(cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	go func() {
		if err := metricsSrv.ServeHTTPHandler(ctx, http.DefaultServeMux); err != nil {
			logger.Errorf("metrics server: %v", err)
			cancel()
		}
	}()

	logger.Infof("weld listening on %s, grpc on %s, metrics on %s", cfg.SrvAddr, cfg.GRPCAddr, cfg.MetricsAddr)

	<-ctx.Done()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	var errs []error
	for i := 0; i < shutdownCount; i++ {
		if err := <-shutdownCh; err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("weld stopped")
	return errors.Join(errs...)
}

func routes(ctx context.Context, cfg *config.Config, manager dispatcher.Manager) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	queryHandler, err := query.NewHandler(&cfg.Query, manager)
	if err != nil {
		return nil, fmt.Errorf("query.NewHandler: %w", err)
	}
	clustersHandler, err := query.NewClustersHandler(&cfg.Query, manager)
	if err != nil {
		return nil, fmt.Errorf("query.NewClustersHandler: %w", err)
	}

	mux.Handle("/query", queryHandler)
	mux.Handle("/clusters", clustersHandler)
	mux.Handle("/health", server.HandleHealth(ctx))

	if cfg.SvcMode() == config.SvcModeTypeCollect {
		collectHandler, err := collect.NewHandler(&cfg.Collect, manager)
		if err != nil {
			return nil, fmt.Errorf("collect.NewHandler: %w", err)
		}
		mux.Handle("/collect", collectHandler)
	}
	return mux, nil
}
