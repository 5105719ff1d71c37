package transport

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/log"
	"github.com/mash-protocol/mash-panel/pkg/version"
)

// Event is one decoded message from an event stream.
type Event struct {
	// ID is the SSE id field, if the device sent one.
	ID string

	// Name is the SSE event field ("message" when absent).
	Name string

	// Value is the decoded CBOR payload.
	Value cbor.Value
}

// Subscribe opens an event stream at path and delivers decoded messages.
//
// Payloads that are not valid base64 CBOR are logged and skipped; they never
// close the stream. The channel is closed when the device ends the stream,
// the connection fails or ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	requestID := uuid.New().String()

	target, err := url.Parse(c.URL(path))
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}
	if c.config.Token != "" {
		q := target.Query()
		q.Set(TokenQueryParam, c.config.Token)
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", EventStreamContentType)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set(version.Header, version.Current)

	resp, err := c.stream.Do(req)
	if err != nil {
		c.logError(requestID, c.URL(path), log.StageTransport, err, "SUBSCRIBE "+path)
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	if err := version.Check(resp.Header.Get(version.Header)); err != nil {
		resp.Body.Close()
		c.logError(requestID, c.URL(path), log.StageStatus, err, "SUBSCRIBE "+path)
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := readBounded(resp.Body, c.config.MaxBodySize)
		resp.Body.Close()
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       path,
			Message:    errorMessage(data),
		}
		c.logError(requestID, c.URL(path), log.StageStatus, serr, "SUBSCRIBE "+path)
		return nil, serr
	}

	events := make(chan Event)
	sub := &subscription{
		client:    c,
		requestID: requestID,
		path:      path,
		remote:    c.URL(path),
		events:    events,
	}

	// Cancelling ctx aborts the body read, which ends the scan loop.
	go func() {
		defer close(events)
		defer resp.Body.Close()
		sub.run(ctx, resp)
	}()

	return events, nil
}

type subscription struct {
	client    *Client
	requestID string
	path      string
	remote    string
	events    chan<- Event
}

func (s *subscription) run(ctx context.Context, resp *http.Response) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), int(s.client.config.MaxBodySize))

	var id, name string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				if !s.dispatch(ctx, id, name, strings.Join(data, "\n")) {
					return
				}
			}
			name, data = "", data[:0]
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		case "id":
			id = value
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.client.logError(s.requestID, s.remote, log.StageTransport, err, "STREAM "+s.path)
	}
}

// dispatch decodes one message and delivers it. It returns false when ctx
// is done.
func (s *subscription) dispatch(ctx context.Context, id, name, payload string) bool {
	if name == "" {
		name = "message"
	}

	v, err := cbor.DecodeBase64(payload)
	if err != nil {
		s.client.logger.Log(log.Event{
			Timestamp:  time.Now(),
			RequestID:  s.requestID,
			Direction:  log.DirectionIn,
			Channel:    log.ChannelSSE,
			Category:   log.CategoryError,
			LocalRole:  log.RolePanel,
			RemoteAddr: s.remote,
			Error: &log.ErrorEventData{
				Stage:      log.StageDecode,
				Message:    err.Error(),
				Context:    "event " + name,
				Structural: cbor.IsStructural(err),
			},
		})
		return true
	}

	s.client.logger.Log(log.Event{
		Timestamp:  time.Now(),
		RequestID:  s.requestID,
		Direction:  log.DirectionIn,
		Channel:    log.ChannelSSE,
		Category:   log.CategoryExchange,
		LocalRole:  log.RolePanel,
		RemoteAddr: s.remote,
		Exchange: &log.ExchangeEvent{
			Path:      s.path,
			Size:      decodedLen(payload),
			Payload:   &v,
			EventName: name,
		},
	})

	select {
	case s.events <- Event{ID: id, Name: name, Value: v}:
		return true
	case <-ctx.Done():
		return false
	}
}

// decodedLen returns the number of bytes a base64 payload decodes to.
func decodedLen(payload string) int {
	n := len(strings.TrimRight(strings.TrimSpace(payload), "="))
	return n * 6 / 8
}
