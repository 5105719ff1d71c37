package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/log"
	"github.com/mash-protocol/mash-panel/pkg/version"
)

// Protocol constants.
const (
	// ContentType is the media type of CBOR request and response bodies.
	ContentType = "application/cbor"

	// EventStreamContentType is the media type of the telemetry stream.
	EventStreamContentType = "text/event-stream"

	// HeaderRequestID carries the per-exchange request ID.
	HeaderRequestID = "X-Request-ID"

	// TokenQueryParam carries the token on event-stream requests.
	TokenQueryParam = "token"

	// DefaultMaxBodySize is the default maximum body size (1 MB).
	DefaultMaxBodySize = 1 << 20

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// ClientConfig configures a panel client.
type ClientConfig struct {
	// BaseURL is the device origin, e.g. "http://192.168.1.20:8080".
	// Request paths are appended to it.
	BaseURL string

	// Token is the bearer token. Empty disables authentication.
	Token string

	// HTTPClient is used for requests. If nil, a client with Timeout is created.
	HTTPClient *http.Client

	// Timeout bounds plain requests (default: 10s). Event streams are not
	// subject to it.
	Timeout time.Duration

	// MaxBodySize bounds response bodies and stream lines (default: 1 MB).
	MaxBodySize int64

	// Logger receives protocol events. Nil disables protocol logging.
	Logger log.Logger
}

// Client exchanges CBOR values with a device.
type Client struct {
	config ClientConfig
	base   string
	http   *http.Client
	stream *http.Client
	logger log.Logger
}

// NewClient creates a new client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid BaseURL scheme %q", u.Scheme)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	streamClient := *httpClient
	streamClient.Timeout = 0

	return &Client{
		config: config,
		base:   strings.TrimSuffix(config.BaseURL, "/"),
		http:   httpClient,
		stream: &streamClient,
		logger: log.OrNoop(config.Logger),
	}, nil
}

// BaseURL returns the configured device origin.
func (c *Client) BaseURL() string {
	return c.base
}

// URL resolves path against the base URL. Absolute URLs are returned as-is.
func (c *Client) URL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return c.base + "/" + strings.TrimPrefix(path, "/")
}

// Get fetches path and decodes the response body.
func (c *Client) Get(ctx context.Context, path string) (cbor.Value, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post sends body to path and decodes the response body.
func (c *Client) Post(ctx context.Context, path string, body cbor.Value) (cbor.Value, error) {
	return c.do(ctx, http.MethodPost, path, &body)
}

// Put replaces the resource at path with body.
func (c *Client) Put(ctx context.Context, path string, body cbor.Value) (cbor.Value, error) {
	return c.do(ctx, http.MethodPut, path, &body)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// GetOr fetches path and returns def when the request or decoding fails.
// The failure is recorded in the protocol log with the fallback flag set,
// under the request ID of the failed exchange.
func (c *Client) GetOr(ctx context.Context, path string, def cbor.Value) cbor.Value {
	requestID := uuid.New().String()
	v, err := c.exchange(ctx, requestID, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Log(log.Event{
			Timestamp:  time.Now(),
			RequestID:  requestID,
			Direction:  log.DirectionIn,
			Channel:    log.ChannelHTTP,
			Category:   log.CategoryError,
			LocalRole:  log.RolePanel,
			RemoteAddr: c.URL(path),
			Error: &log.ErrorEventData{
				Stage:      stageOf(err),
				Message:    err.Error(),
				Context:    "GET " + path,
				Structural: cbor.IsStructural(err),
				Fallback:   true,
			},
		})
		return def
	}
	return v
}

func (c *Client) do(ctx context.Context, method, path string, body *cbor.Value) (cbor.Value, error) {
	return c.exchange(ctx, uuid.New().String(), method, path, body)
}

func (c *Client) exchange(ctx context.Context, requestID, method, path string, body *cbor.Value) (cbor.Value, error) {
	target := c.URL(path)

	var payload []byte
	var reader io.Reader
	if body != nil {
		payload = cbor.Encode(*body)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return cbor.Null(), fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set(version.Header, version.Current)
	if body != nil {
		req.Header.Set("Content-Type", ContentType)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	if body != nil {
		c.logExchange(requestID, log.DirectionOut, target, &log.ExchangeEvent{
			Method:  method,
			Path:    path,
			Size:    len(payload),
			Payload: body,
		})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(requestID, target, log.StageTransport, err, method+" "+path)
		return cbor.Null(), fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := version.Check(resp.Header.Get(version.Header)); err != nil {
		c.logError(requestID, target, log.StageStatus, err, method+" "+path)
		return cbor.Null(), fmt.Errorf("%s %s: %w", method, path, err)
	}

	data, err := readBounded(resp.Body, c.config.MaxBodySize)
	if err != nil {
		c.logError(requestID, target, log.StageTransport, err, method+" "+path)
		return cbor.Null(), fmt.Errorf("%s %s: %w", method, path, err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    errorMessage(data),
		}
		c.logError(requestID, target, log.StageStatus, serr, method+" "+path)
		return cbor.Null(), serr
	}

	value := cbor.Null()
	if len(data) > 0 {
		value, err = cbor.Decode(data)
		if err != nil {
			c.logError(requestID, target, log.StageDecode, err, method+" "+path)
			return cbor.Null(), fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	c.logExchange(requestID, log.DirectionIn, target, &log.ExchangeEvent{
		Method:   method,
		Path:     path,
		Status:   resp.StatusCode,
		Size:     len(data),
		Payload:  &value,
		Duration: &elapsed,
	})
	return value, nil
}

func (c *Client) logExchange(requestID string, dir log.Direction, remote string, ex *log.ExchangeEvent) {
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		RequestID:  requestID,
		Direction:  dir,
		Channel:    log.ChannelHTTP,
		Category:   log.CategoryExchange,
		LocalRole:  log.RolePanel,
		RemoteAddr: remote,
		Exchange:   ex,
	})
}

func (c *Client) logError(requestID, remote string, stage log.Stage, err error, context string) {
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		RequestID:  requestID,
		Direction:  log.DirectionIn,
		Channel:    log.ChannelHTTP,
		Category:   log.CategoryError,
		LocalRole:  log.RolePanel,
		RemoteAddr: remote,
		Error: &log.ErrorEventData{
			Stage:      stage,
			Message:    err.Error(),
			Context:    context,
			Structural: cbor.IsStructural(err),
		},
	})
}

// readBounded reads at most max bytes from r.
func readBounded(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, max)
	}
	return data, nil
}

// errorMessage extracts the error text from a device error body.
func errorMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	v, err := cbor.Decode(data)
	if err != nil {
		return ""
	}
	if e, ok := v.Get("error"); ok {
		if s, ok := e.AsText(); ok {
			return s
		}
	}
	if s, ok := v.AsText(); ok {
		return s
	}
	return ""
}

func stageOf(err error) log.Stage {
	var se *StatusError
	switch {
	case errors.As(err, &se), errors.Is(err, version.ErrIncompatible):
		return log.StageStatus
	case cbor.IsStructural(err):
		return log.StageDecode
	default:
		return log.StageTransport
	}
}
