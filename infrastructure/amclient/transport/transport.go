// Package transport implements the Assumptions Manager HTTP transport:
// blocking GET/POST with fixed-backoff retry, status-specific error
// synthesis, base-URL normalization and timeout handling via
// infrastructure/httputil, and Authorization-header redaction in debug logs
// via infrastructure/redaction.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/R3E-Network/livecalc/infrastructure/errors"
	"github.com/R3E-Network/livecalc/infrastructure/httputil"
	"github.com/R3E-Network/livecalc/infrastructure/redaction"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

// fixedBackoff is the retry schedule: 1s, 2s, 4s between the three total
// attempts.
var fixedBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

const maxAttempts = 3

// Response is the result of a single logical request (after any retries).
type Response struct {
	StatusCode      int
	Body            []byte
	ResponseHeaders http.Header
	WallDuration    time.Duration
}

// Transport issues blocking GET/POST requests against a single base URL.
type Transport struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
	debug   bool
	redactr *redaction.Redactor
}

// Config configures a Transport.
type Config struct {
	BaseURL string
	Timeout time.Duration // default 30s
	Debug   bool          // when true, Authorization is redacted in log output
	Logger  *logger.Logger
}

// New constructs a Transport, normalizing BaseURL (trailing slash stripped).
func New(cfg Config) (*Transport, error) {
	client, normalized, err := httputil.NewClientWithBaseURL(
		httputil.ClientConfig{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout},
		httputil.DefaultClientDefaults(),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return &Transport{
		baseURL: normalized,
		client:  client,
		log:     cfg.Logger,
		debug:   cfg.Debug,
		redactr: redaction.NewRedactor(redaction.DefaultConfig()),
	}, nil
}

// Get issues a blocking GET to path (joined onto the base URL) with extra
// headers, retrying per the fixed-backoff policy.
func (t *Transport) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return t.do(ctx, http.MethodGet, path, nil, headers)
}

// Post issues a blocking POST with a JSON body, retrying per the
// fixed-backoff policy.
func (t *Transport) Post(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error) {
	return t.do(ctx, http.MethodPost, path, body, headers)
}

func (t *Transport) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	url := t.baseURL + path

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fixedBackoff[attempt-1]):
			}
		}

		resp, err := t.attempt(ctx, method, url, body, headers)
		if err != nil {
			lastErr = errors.TransportFailure(err)
			continue
		}

		if !shouldRetry(resp.StatusCode) {
			if resp.StatusCode >= 400 {
				return resp, errors.HTTPStatusError(resp.StatusCode, statusMessage(resp.StatusCode))
			}
			return resp, nil
		}

		lastErr = errors.HTTPStatusError(resp.StatusCode, statusMessage(resp.StatusCode))
	}

	return nil, lastErr
}

func (t *Transport) attempt(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	t.logRequest(req)

	start := time.Now()
	resp, err := t.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:      resp.StatusCode,
		Body:            respBody,
		ResponseHeaders: resp.Header,
		WallDuration:    elapsed,
	}, nil
}

func (t *Transport) logRequest(req *http.Request) {
	if t.log == nil || !t.debug {
		return
	}
	auth := req.Header.Get("Authorization")
	display := auth
	if auth != "" {
		display = t.redactr.RedactString("Authorization: " + auth)
	}
	t.log.WithFields(map[string]interface{}{
		"method":        req.Method,
		"url":           req.URL.String(),
		"authorization": display,
	}).Debug("am transport request")
}

// shouldRetry reports whether status is retryable: transport failures are
// handled by the caller before this is reached; here it's 408, 429, and any
// 5xx.
func shouldRetry(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// statusMessage synthesizes a status-specific error message.
func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication failed"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusNotFound:
		return "resource not found"
	default:
		if status >= 500 {
			return "server error"
		}
		return fmt.Sprintf("unexpected status %d", status)
	}
}
