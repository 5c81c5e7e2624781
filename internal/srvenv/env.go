// Package srvenv holds the resources and component providers shared by the
// service.
package srvenv

import (
	"context"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/notify"
	"github.com/go-sod/weld/internal/scrape"
)

type Option func(*SrvEnv) *SrvEnv

func New(opts ...Option) *SrvEnv {
	env := &SrvEnv{}
	for _, f := range opts {
		env = f(env)
	}

	return env
}

type SrvEnv struct {
	database   *database.DB
	dispatcher dispatcher.ProvideFn
	notifier   notify.ProvideFn
	scrapper   scrape.ProvideFn
}

// ProvideScrapper is nil unless the service runs in scrape mode.
func (s *SrvEnv) ProvideScrapper() scrape.ProvideFn {
	return s.scrapper
}

func (s *SrvEnv) ProvideNotifier() notify.ProvideFn {
	return s.notifier
}

func (s *SrvEnv) ProvideDispatcher() dispatcher.ProvideFn {
	return s.dispatcher
}

func (s *SrvEnv) Database() *database.DB {
	return s.database
}

func WithScrapper(fn scrape.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.scrapper = fn
		return s
	}
}

func WithNotifier(fn notify.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.notifier = fn
		return s
	}
}

func WithDispatcher(fn dispatcher.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.dispatcher = fn
		return s
	}
}

func WithDatabase(db *database.DB) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.database = db
		return s
	}
}

func (s *SrvEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.database != nil {
		return s.database.Close(ctx)
	}
	return nil
}
