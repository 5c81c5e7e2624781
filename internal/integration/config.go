package integration

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config describes how to reach a weld service.
type Config struct {
	// Base URL of the service, requests are made relative to it
	URL            string        `envconfig:"WELD_CLIENT_URL" default:"http://127.0.0.1:8787"`
	RequestTimeout time.Duration `envconfig:"WELD_CLIENT_REQUEST_TIMEOUT" default:"30s"`
	// At most one of bearer token and username may be set
	BearerToken string `envconfig:"WELD_CLIENT_BEARER_TOKEN"`
	Username    string `envconfig:"WELD_CLIENT_USERNAME"`
	Password    string `envconfig:"WELD_CLIENT_PASSWORD"`
}

func (c *Config) Validate() error {
	if c.BearerToken != "" && c.Username != "" {
		return errors.New("at most one of bearer token and username must be configured")
	}
	if c.Username == "" && c.Password != "" {
		return errors.New("password requires a username")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	_, err := c.baseURL()
	return err
}

func (c *Config) baseURL() (*url.URL, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("service url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("service url %q has no host", c.URL)
	}
	return u, nil
}
