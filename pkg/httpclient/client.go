// Package httpclient builds the HTTP client used for local inference calls.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// DefaultTimeout covers slow local inference on large prompts.
const DefaultTimeout = 2000 * time.Second

// ClientConfig holds the knobs for NewHTTPClient.
type ClientConfig struct {
	// Timeout bounds the whole request, including reading the body.
	Timeout time.Duration

	DialTimeout         time.Duration
	KeepAlive           time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
}

// EnvDuration reads key as integer seconds or a Go duration string. Unset
// or unparsable values yield def.
func EnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return def
}

// DefaultConfig returns the single long timeout used for generation calls.
// HTTP_TIMEOUT overrides it (seconds, or a duration such as "30m").
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:             EnvDuration("HTTP_TIMEOUT", DefaultTimeout),
		DialTimeout:         30 * time.Second,
		KeepAlive:           30 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}
}

// NewHTTPClient creates a client from config. A nil config uses DefaultConfig.
// The response-header wait is left unbounded apart from Timeout, since
// Ollama only answers once generation has finished.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// WithTimeout is NewHTTPClient with DefaultConfig and the given timeout.
// A non-positive timeout keeps the default.
func WithTimeout(timeout time.Duration) *http.Client {
	cfg := DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return NewHTTPClient(&cfg)
}
