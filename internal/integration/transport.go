package integration

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// serviceTransport resolves relative requests against the service URL and
// signs them with the configured credentials.
type serviceTransport struct {
	base *url.URL
	cfg  *Config
	rt   http.RoundTripper
}

func newTransport(cfg *Config) (*serviceTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	base, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}
	return &serviceTransport{
		base: base,
		cfg:  cfg,
		rt: &http.Transport{
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   64,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
			ResponseHeaderTimeout: cfg.RequestTimeout,
		},
	}, nil
}

func (t *serviceTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the caller's request
	r = r.Clone(r.Context())
	if r.URL.Host == "" {
		r.URL = t.base.ResolveReference(&url.URL{
			Path:     strings.TrimSuffix(t.base.Path, "/") + r.URL.Path,
			RawQuery: r.URL.RawQuery,
		})
		r.Host = r.URL.Host
	}
	if r.Header.Get("Authorization") == "" {
		switch {
		case t.cfg.BearerToken != "":
			r.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
		case t.cfg.Username != "":
			r.SetBasicAuth(t.cfg.Username, strings.TrimSpace(t.cfg.Password))
		}
	}
	return t.rt.RoundTrip(r)
}
