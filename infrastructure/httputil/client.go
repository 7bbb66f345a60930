package httputil

import (
	"fmt"
	"net/http"
	"time"
)

// ClientConfig holds standard client configuration for outbound HTTP
// clients (the Assumptions Manager transport, in LiveCalc).
type ClientConfig struct {
	// BaseURL is the base URL for the service (will be normalized).
	BaseURL string

	// Timeout is the request timeout. Zero means use default.
	Timeout time.Duration

	// HTTPClient is the base HTTP client to use. If nil, a new one is created.
	HTTPClient *http.Client
}

// ClientDefaults holds default values for client configuration.
type ClientDefaults struct {
	Timeout          time.Duration
	NormalizeBaseURL bool
	RequireHTTPS     bool
}

// DefaultClientDefaults returns standard default values.
func DefaultClientDefaults() ClientDefaults {
	return ClientDefaults{
		Timeout:          30 * time.Second,
		NormalizeBaseURL: true,
		RequireHTTPS:     false,
	}
}

// NewClient creates an HTTP client with standardized timeout handling.
func NewClient(cfg ClientConfig, defaults ClientDefaults) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	forceTimeout := cfg.Timeout != 0
	return CopyHTTPClientWithTimeout(cfg.HTTPClient, timeout, forceTimeout)
}

// NewClientWithBaseURL normalizes cfg.BaseURL and creates a client in one step.
func NewClientWithBaseURL(cfg ClientConfig, defaults ClientDefaults) (*http.Client, string, error) {
	normalizedURL := cfg.BaseURL
	if defaults.NormalizeBaseURL {
		var err error
		normalizedURL, _, err = NormalizeBaseURL(cfg.BaseURL, BaseURLOptions{RequireHTTPS: defaults.RequireHTTPS})
		if err != nil {
			return nil, "", fmt.Errorf("normalize base URL: %w", err)
		}
	}

	client := NewClient(ClientConfig{BaseURL: normalizedURL, Timeout: cfg.Timeout, HTTPClient: cfg.HTTPClient}, defaults)
	return client, normalizedURL, nil
}
