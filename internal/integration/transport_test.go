package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "plain", cfg: Config{URL: "http://127.0.0.1:8787", RequestTimeout: time.Second}},
		{name: "bearer", cfg: Config{URL: "https://weld.local", RequestTimeout: time.Second, BearerToken: "t"}},
		{name: "basic", cfg: Config{URL: "http://weld.local/api", RequestTimeout: time.Second, Username: "u", Password: "p"}},
		{name: "bearer_and_basic", cfg: Config{URL: "http://weld.local", RequestTimeout: time.Second, BearerToken: "t", Username: "u"}, wantErr: true},
		{name: "password_only", cfg: Config{URL: "http://weld.local", RequestTimeout: time.Second, Password: "p"}, wantErr: true},
		{name: "no_scheme", cfg: Config{URL: "127.0.0.1:8787", RequestTimeout: time.Second}, wantErr: true},
		{name: "no_host", cfg: Config{URL: "http://", RequestTimeout: time.Second}, wantErr: true},
		{name: "no_timeout", cfg: Config{URL: "http://weld.local"}, wantErr: true},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if err := test.cfg.Validate(); (err != nil) != test.wantErr {
				t.Errorf("validate error, got: %v, expected error: %v", err, test.wantErr)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))
	assert.Equal(t, "http://127.0.0.1:8787", cfg.URL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestServiceTransport(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cfg      Config
		target   string
		path     string
		expected string
	}{
		{name: "no_auth", target: "/health", path: "/health"},
		{name: "bearer", cfg: Config{BearerToken: "secret"}, target: "/health", path: "/health", expected: "Bearer secret"},
		{name: "basic", cfg: Config{Username: "u", Password: "p "}, target: "/health", path: "/health", expected: "Basic dTpw"},
		{name: "base_path", cfg: Config{URL: "/api/"}, target: "/clusters?entity=e", path: "/api/clusters?entity=e"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			seen := make(chan *http.Request, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen <- r.Clone(context.Background())
			}))
			defer srv.Close()

			cfg := test.cfg
			cfg.URL = srv.URL + cfg.URL
			cfg.RequestTimeout = time.Second
			client, err := NewClient(&cfg)
			require.NoError(t, err)

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, test.target, nil)
			require.NoError(t, err)
			resp, err := client.client.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			got := <-seen
			assert.Equal(t, test.expected, got.Header.Get("Authorization"))
			assert.Equal(t, test.path, got.URL.RequestURI())
			assert.Empty(t, req.URL.Host, "the caller's request must not be modified")
		})
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := NewClient(&Config{URL: "http://weld.local", RequestTimeout: time.Second, BearerToken: "t", Username: "u"})
	assert.Error(t, err)
}
