// Package transport is the authenticated HTTP wrapper every engine calls
// through. It resolves relative paths against the configured base, attaches
// the bearer token when a session is persisted, and treats 401 as terminal:
// the session is cleared and the host's reload hook fires. All other
// statuses are returned to the caller unmodified.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"metaview/internal/core/apperror"
	"metaview/internal/core/appctx"
	"metaview/pkg/logger"
)

const tracerName = "metaview/transport"

// Client is the authenticated HTTP client shared by all engines.
type Client struct {
	base     *url.URL
	http     *http.Client
	sessions appctx.SessionSource
	onAuth   func()
	tracer   trace.Tracer
}

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080/api".
	BaseURL string

	// Sessions supplies and clears the persisted session. Optional; without
	// it requests go out unauthenticated.
	Sessions appctx.SessionSource

	// OnAuthFailure runs after a 401 has cleared the session.
	OnAuthFailure func()

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client

	Timeout time.Duration
}

// New creates a Client from configuration.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:     base,
		http:     hc,
		sessions: cfg.Sessions,
		onAuth:   cfg.OnAuthFailure,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Resolve joins a request path with the configured base.
func (c *Client) Resolve(path string) string {
	joined := strings.TrimSuffix(c.base.String(), "/") + "/" + strings.TrimPrefix(path, "/")
	return joined
}

// Do issues one request. The body, when non-nil, is serialized as JSON.
// Extra headers are applied after the standard set so callers can add
// conditional headers (If-None-Match). On 401 the persisted session is
// cleared, the auth-failure hook fires, and an UNAUTHORIZED error is
// returned; no retry is attempted.
func (c *Client) Do(ctx context.Context, method, path string, body any, extra http.Header) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("HTTP %s", method),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperror.NewDecode(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Resolve(path), reader)
	if err != nil {
		return nil, apperror.NewTransport(err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "zstd")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := appctx.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if method != http.MethodGet && method != http.MethodHead {
		// The server deduplicates replayed mutations by this key.
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}
	if c.sessions != nil {
		if sess, ok := c.sessions.Current(); ok && sess.Token != "" {
			req.Header.Set("Authorization", "Bearer "+sess.Token)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		logger.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		return nil, apperror.NewTransport(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		logger.Warn(ctx, "session rejected, clearing", "path", path)
		if c.sessions != nil {
			if err := c.sessions.Clear(); err != nil {
				logger.Error(ctx, "failed to clear session", "error", err)
			}
		}
		if c.onAuth != nil {
			c.onAuth()
		}
		return nil, apperror.NewUnauthorized("session expired")
	}

	if err := decompress(resp); err != nil {
		resp.Body.Close()
		return nil, apperror.NewDecode(err)
	}
	return resp, nil
}

// decompress swaps the body for a zstd reader when the server compressed it.
func decompress(resp *http.Response) error {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "zstd") {
		return nil
	}
	dec, err := zstd.NewReader(resp.Body)
	if err != nil {
		return err
	}
	raw := resp.Body
	resp.Body = &zstdBody{Reader: dec.IOReadCloser(), raw: raw}
	resp.Header.Del("Content-Encoding")
	return nil
}

type zstdBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *zstdBody) Close() error {
	if rc, ok := b.Reader.(io.ReadCloser); ok {
		rc.Close()
	}
	return b.raw.Close()
}

// GetJSON fetches path and decodes a 2xx JSON body into out. Non-2xx
// responses are converted via DecodeError.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.NewDecode(err)
	}
	return nil
}

// Send issues a JSON mutation and decodes a 2xx response into out when
// provided. Non-2xx responses are converted via DecodeError.
func (c *Client) Send(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Do(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.NewDecode(err)
	}
	return nil
}

// errorPayload matches the server's error envelopes: {error} on schema and
// CRUD failures, {message} on action failures.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodeError converts a non-2xx response into an AppError carrying the
// server-provided detail when present, else the HTTP status text.
func DecodeError(resp *http.Response) error {
	var payload errorPayload
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &payload)
	detail := payload.Error
	if detail == "" {
		detail = payload.Message
	}
	return apperror.NewHTTP(resp.StatusCode, detail)
}
