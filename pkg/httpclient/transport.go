package httpclient

import (
	"net"
	"net/http"
	"time"
)

// TransportConfig sizes the pooled transport used for outbound calls.
type TransportConfig struct {
	DialTimeout     time.Duration
	MaxConnsPerHost int
	// ResponseHeaderTimeout bounds the wait for response headers; zero means none.
	ResponseHeaderTimeout time.Duration
}

// DefaultTransportConfig returns pooled defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:     5 * time.Second,
		MaxConnsPerHost: 64,
	}
}

// NewTransport builds a keep-alive transport from cfg.
func NewTransport(cfg TransportConfig) *http.Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 64
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxConnsPerHost * 2,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
	}
}
