// Package backend is the REST client for the care platform API. Every
// response is wrapped in {success, data|error, timestamp}.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken() string
}

// Observer sees every round trip. status is 0 when no response arrived.
type Observer interface {
	ObserveBackend(method string, status int, elapsed time.Duration)
}

type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Tokens       TokenSource
	Logger       *slog.Logger
	Observer     Observer
	CommandRate  float64
	CommandBurst int
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	logger     *slog.Logger
	observer   Observer
	commands   *rate.Limiter
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokens:     opts.Tokens,
		logger:     logger,
		observer:   opts.Observer,
	}
	if opts.CommandRate > 0 {
		burst := opts.CommandBurst
		if burst <= 0 {
			burst = 1
		}
		c.commands = rate.NewLimiter(rate.Limit(opts.CommandRate), burst)
	}
	return c
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     json.RawMessage `json:"error"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	noAuth bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.noAuth && c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.method, 0, start)
		c.logger.Error("backend request failed",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("backend: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	c.observe(r.method, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("backend: read %s %s: %w", r.method, r.path, err)
	}

	var env envelope
	decodeErr := errors.New("empty body")
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil {
			fillEnvelopeError(apiErr, env.Error)
		}
		return apiErr
	}

	if decodeErr != nil {
		if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		return &MalformedResponseError{Op: r.method + " " + r.path, Err: decodeErr}
	}
	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: "request was not successful"}
		fillEnvelopeError(apiErr, env.Error)
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if rawOut, ok := out.(*json.RawMessage); ok {
		*rawOut = append((*rawOut)[:0], env.Data...)
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &MalformedResponseError{Op: r.method + " " + r.path, Err: err}
	}
	return nil
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackend(method, status, time.Since(start))
	}
}

func fillEnvelopeError(dst *APIError, raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	var structured envelopeError
	if err := json.Unmarshal(raw, &structured); err == nil {
		dst.Code = structured.Code
		if structured.Message != "" {
			dst.Message = structured.Message
		}
		return
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
		dst.Message = msg
	}
}

func pathID(id string) string {
	return url.PathEscape(id)
}
