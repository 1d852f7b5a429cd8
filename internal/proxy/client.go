// Package proxy forwards operator chat messages to the bot core and
// normalizes every failure into a single text fragment.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/ashureev/bot-console/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultTimeout          = 120 * time.Second
	defaultConnectTimeout   = 60 * time.Second
	defaultMaxResponseBytes = 8 << 20
	diagnosticBodyLimit     = 2048
)

// Forwarder is the operation the HTTP layer depends on.
type Forwarder interface {
	Forward(ctx context.Context, call Call) Result
}

// Call is a single chat request bound for the bot core.
type Call struct {
	UserID    string
	SessionID string
	Query     *string
	Settings  map[string]string
}

// Config configures a Client.
type Config struct {
	URL              string
	Timeout          time.Duration
	ConnectTimeout   time.Duration
	MaxResponseBytes int64
	DefaultSettings  map[string]string
}

// Client posts chat requests to the bot core over HTTP. It never retries.
type Client struct {
	url        string
	httpClient *http.Client
	transport  *http.Transport
	timeout    time.Duration
	maxBytes   int64
	defaults   map[string]string
	transcript Transcript
	logger     *slog.Logger
}

// NewClient creates a bot core client. A nil transcript disables transcripts.
func NewClient(cfg Config, transcript Transcript, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid bot core URL %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if transcript == nil {
		transcript = noopTranscript{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		url:        u.String(),
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		transport:  transport,
		timeout:    cfg.Timeout,
		maxBytes:   cfg.MaxResponseBytes,
		defaults:   maps.Clone(cfg.DefaultSettings),
		transcript: transcript,
		logger:     logger.With("component", "proxy"),
	}, nil
}

// Forward sends one chat request and returns the bot core payload verbatim,
// or a Failure describing why there is none.
func (c *Client) Forward(ctx context.Context, call Call) Result {
	if call.UserID == "" {
		return Unauthenticated()
	}

	start := time.Now()
	requestID := middleware.GetReqID(ctx)
	settings := c.mergeSettings(call.Settings)

	result, status := c.do(ctx, requestID, domain.ChatRequest{
		Query:    call.Query,
		UserID:   call.UserID,
		Settings: settings,
	})

	event := TranscriptEvent{
		UserID:     call.UserID,
		SessionID:  call.SessionID,
		RequestID:  requestID,
		Query:      call.Query,
		Settings:   settings,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if f := result.Failure(); f != nil {
		event.Failure = f.Error()
		c.logger.Warn("Bot core request failed",
			"user_id", call.UserID,
			"request_id", requestID,
			"kind", f.Kind.String(),
			"status", status,
			"duration", time.Since(start),
			"error", f.Error())
	} else {
		event.Response = result.Payload()
	}
	c.transcript.Log(event)

	return result
}

func (c *Client) do(ctx context.Context, requestID string, payload domain.ChatRequest) (Result, int) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Fail(FailureBadRequest, "could not encode the chat request", err), 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Fail(FailureTransport, "could not build the bot core request", err), 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportFailure(ctx, err), 0
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return c.transportFailure(ctx, err), resp.StatusCode
	}

	c.logger.Debug("Bot core response",
		"user_id", payload.UserID,
		"request_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(data),
		"body", truncate(data, diagnosticBodyLimit))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Fail(FailureStatus,
			fmt.Sprintf("bot core returned HTTP %d: %s", resp.StatusCode, truncate(bytes.TrimSpace(data), 200)),
			nil), resp.StatusCode
	}
	if int64(len(data)) > c.maxBytes {
		return Fail(FailureDecode, fmt.Sprintf("bot core response exceeds %d bytes", c.maxBytes), nil), resp.StatusCode
	}
	if !json.Valid(data) {
		return Fail(FailureDecode, "bot core returned a response that is not valid JSON", nil), resp.StatusCode
	}

	return Passthrough(json.RawMessage(data)), resp.StatusCode
}

func (c *Client) transportFailure(ctx context.Context, err error) Result {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Fail(FailureCanceled, "request was canceled", err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Fail(FailureTimeout, fmt.Sprintf("bot core did not respond within %s", c.timeout), err)
	}
	return Fail(FailureTransport, "bot core is unreachable", err)
}

func (c *Client) mergeSettings(settings map[string]string) map[string]string {
	merged := make(map[string]string, len(c.defaults)+len(settings))
	maps.Copy(merged, c.defaults)
	maps.Copy(merged, settings)
	return merged
}

// Close releases idle connections to the bot core.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n]) + "..."
}
