// Package iq drives audits against an IQ policy server: it resolves the
// application's internal ID, submits coordinates for a scan and polls the
// returned status location until a report is ready.
package iq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"iqaudit/internal/coordinate"
	"iqaudit/internal/telemetry"
)

const (
	stepResolve = "resolve"
	stepSubmit  = "submit"
	stepPoll    = "poll"

	maxBodyBytes  = 1 << 20
	maxErrorRunes = 200
	userAgent     = "iqaudit"
)

var errBodyTooLarge = errors.New("response body too large")

// Orchestrator runs the resolve, submit and poll workflow for one application.
// Instances share nothing and may be used from separate goroutines.
type Orchestrator struct {
	cfg        Config
	base       *url.URL
	logger     *slog.Logger
	httpClient *http.Client
	metrics    *telemetry.AuditMetrics
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithMetrics records request and outcome metrics.
func WithMetrics(m *telemetry.AuditMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New validates cfg and builds an Orchestrator. The logger is required.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		return nil, errors.New("iq: logger is required")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host are required", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	base.RawQuery = ""
	base.Fragment = ""

	o := &Orchestrator{
		cfg:    cfg,
		base:   base,
		logger: logger.With("app", cfg.PublicAppID, "stage", cfg.Stage),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Config returns the effective configuration, defaults applied.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Audit submits coords and waits for the terminal report using ReportPending
// as the completion predicate.
func (o *Orchestrator) Audit(ctx context.Context, coords []coordinate.Coordinate) (Report, error) {
	statusURL, err := o.Submit(ctx, coords)
	if err != nil {
		return Report{}, err
	}

	var report Report
	err = o.Poll(ctx, statusURL, ReportPending, func(r Report) {
		report = r
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

func (o *Orchestrator) newRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(o.cfg.Username, o.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req and returns the response with its body fully read.
func (o *Orchestrator) do(req *http.Request, step string) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.metrics.ObserveRequest(step, 0, time.Since(start))
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	o.metrics.ObserveRequest(step, resp.StatusCode, time.Since(start))
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return resp, nil, fmt.Errorf("%w (limit %d bytes)", errBodyTooLarge, maxBodyBytes)
	}

	o.logger.Debug("iq request", "step", step, "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, body, nil
}

func (o *Orchestrator) endpoint(elem ...string) *url.URL {
	return o.base.JoinPath(elem...)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// bodyError turns an error response body into a short error, or nil if empty.
func bodyError(body []byte) error {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	if r := []rune(s); len(r) > maxErrorRunes {
		s = string(r[:maxErrorRunes-3]) + "..."
	}
	return errors.New(s)
}
