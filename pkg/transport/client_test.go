package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/log"
	"github.com/mash-protocol/mash-panel/pkg/version"
)

// recordingLogger collects protocol events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *recordingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) byCategory(c log.Category) []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.Event
	for _, e := range l.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func newTestClient(t *testing.T, baseURL, token string, logger log.Logger) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: baseURL, Token: token, Logger: logger})
	require.NoError(t, err)
	return c
}

func TestClientGetDecodesBody(t *testing.T) {
	want := cbor.Map(
		cbor.Pair{Key: "limit", Value: cbor.Int(16)},
		cbor.Pair{Key: "mode", Value: cbor.Text("eco")},
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/settings", r.URL.Path)
		assert.Equal(t, ContentType, r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		_ = WriteValue(w, http.StatusOK, want)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := newTestClient(t, srv.URL+"/", "secret", logger)

	got, err := client.Get(context.Background(), "/api/v1/settings")
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)

	exchanges := logger.byCategory(log.CategoryExchange)
	require.Len(t, exchanges, 1)
	assert.Equal(t, log.DirectionIn, exchanges[0].Direction)
	assert.Equal(t, http.StatusOK, exchanges[0].Exchange.Status)
	assert.Equal(t, len(cbor.Encode(want)), exchanges[0].Exchange.Size)
	assert.NotNil(t, exchanges[0].Exchange.Duration)
}

func TestClientPostSendsCBOR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ContentType, r.Header.Get("Content-Type"))
		v, err := ReadValue(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		_ = WriteValue(w, http.StatusOK, v)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := newTestClient(t, srv.URL, "", logger)

	body := cbor.Map(
		cbor.Pair{Key: "a", Value: cbor.Int(1)},
		cbor.Pair{Key: "skip", Value: cbor.Undefined()},
		cbor.Pair{Key: "b", Value: cbor.Array(cbor.Bool(true), cbor.Null())},
	)
	got, err := client.Post(context.Background(), "api/v1/echo", body)
	require.NoError(t, err)

	want := cbor.Map(
		cbor.Pair{Key: "a", Value: cbor.Int(1)},
		cbor.Pair{Key: "b", Value: cbor.Array(cbor.Bool(true), cbor.Null())},
	)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)

	exchanges := logger.byCategory(log.CategoryExchange)
	require.Len(t, exchanges, 2)
	assert.Equal(t, log.DirectionOut, exchanges[0].Direction)
	assert.Equal(t, exchanges[0].RequestID, exchanges[1].RequestID)
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "no such setting")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "", nil)

	_, err := client.Get(context.Background(), "/api/v1/settings/missing")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "no such setting", se.Message)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "404")
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(Authorize("secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = WriteValue(w, http.StatusOK, cbor.Null())
	})))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "wrong", nil)

	_, err := client.Get(context.Background(), "/")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientDecodeErrorIsNotNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte{0x1a, 0x01}) // truncated uint32
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := newTestClient(t, srv.URL, "", logger)

	v, err := client.Get(context.Background(), "/api/v1/settings")
	require.Error(t, err)
	assert.True(t, cbor.IsStructural(err))
	assert.ErrorIs(t, err, cbor.ErrTruncated)
	assert.True(t, v.IsNull())

	errs := logger.byCategory(log.CategoryError)
	require.Len(t, errs, 1)
	assert.Equal(t, log.StageDecode, errs[0].Error.Stage)
	assert.True(t, errs[0].Error.Structural)
	assert.False(t, errs[0].Error.Fallback)
}

func TestClientEmptyBodyIsNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "", nil)
	assert.NoError(t, client.Delete(context.Background(), "/api/v1/settings/x"))
}

func TestClientGetOrFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xa1, 0x61, 0x61}) // map missing its value
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := newTestClient(t, srv.URL, "", logger)

	def := cbor.Map(cbor.Pair{Key: "limit", Value: cbor.Int(0)})
	got := client.GetOr(context.Background(), "/api/v1/settings", def)
	assert.True(t, got.Equal(def))

	var fallback []log.Event
	for _, e := range logger.byCategory(log.CategoryError) {
		if e.Error.Fallback {
			fallback = append(fallback, e)
		}
	}
	require.Len(t, fallback, 1)
	assert.Equal(t, log.StageDecode, fallback[0].Error.Stage)
	assert.Equal(t, "GET /api/v1/settings", fallback[0].Error.Context)

	// The fallback shares the request ID of the failed exchange.
	errs := logger.byCategory(log.CategoryError)
	require.Len(t, errs, 2)
	assert.NotEmpty(t, fallback[0].RequestID)
	assert.Equal(t, errs[0].RequestID, fallback[0].RequestID)
	assert.Equal(t, srv.URL+"/api/v1/settings", fallback[0].RemoteAddr)
}

func TestClientGetOrIncompatibleDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(version.Header, "2.0")
		_ = WriteValue(w, http.StatusOK, cbor.Int(1))
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := newTestClient(t, srv.URL, "", logger)

	got := client.GetOr(context.Background(), "/api/v1/health", cbor.Int(0))
	n, _ := got.AsInt()
	assert.Equal(t, int64(0), n)

	errs := logger.byCategory(log.CategoryError)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, log.StageStatus, e.Error.Stage)
	}
	assert.False(t, errs[0].Error.Fallback)
	assert.True(t, errs[1].Error.Fallback)
	assert.Equal(t, errs[0].RequestID, errs[1].RequestID)
}

func TestClientGetOrReturnsValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = WriteValue(w, http.StatusOK, cbor.Int(7))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "", nil)
	got := client.GetOr(context.Background(), "/x", cbor.Int(0))
	n, ok := got.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)
}

func TestClientURL(t *testing.T) {
	client := newTestClient(t, "http://device.local:8080/prefix/", "", nil)

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/health", "http://device.local:8080/prefix/api/v1/health"},
		{"api/v1/health", "http://device.local:8080/prefix/api/v1/health"},
		{"", "http://device.local:8080/prefix/"},
		{"http://other:9000/x", "http://other:9000/x"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, client.URL(tt.path))
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: "ftp://device"})
	assert.Error(t, err)

	c, err := NewClient(ClientConfig{BaseURL: "http://device"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Zero(t, c.stream.Timeout)
}

func TestClientRejectsIncompatibleDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, version.Current, r.Header.Get(version.Header))
		w.Header().Set(version.Header, "2.0")
		_ = WriteValue(w, http.StatusOK, cbor.Int(1))
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	client := newTestClient(t, srv.URL, "", logger)

	_, err := client.Get(context.Background(), "/api/v1/health")
	assert.ErrorIs(t, err, version.ErrIncompatible)

	errs := logger.byCategory(log.CategoryError)
	require.Len(t, errs, 1)
	assert.Equal(t, log.StageStatus, errs[0].Error.Stage)
}
