package transport

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/version"
)

// WriteValue writes v as a CBOR response body with the given status code.
func WriteValue(w http.ResponseWriter, status int, v cbor.Value) error {
	data := cbor.Encode(v)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_, err := w.Write(data)
	return err
}

// WriteError writes a CBOR {error: msg} body with the given status code.
func WriteError(w http.ResponseWriter, status int, msg string) {
	_ = WriteValue(w, status, cbor.Map(cbor.Pair{Key: "error", Value: cbor.Text(msg)}))
}

// ReadValue reads and decodes a CBOR request body of at most
// DefaultMaxBodySize bytes.
func ReadValue(r *http.Request) (cbor.Value, error) {
	return ReadValueMax(r, DefaultMaxBodySize)
}

// ReadValueMax reads and decodes a CBOR request body of at most max bytes.
func ReadValueMax(r *http.Request, max int64) (cbor.Value, error) {
	if r.Body == nil {
		return cbor.Null(), ErrEmptyBody
	}
	data, err := readBounded(r.Body, max)
	if err != nil {
		return cbor.Null(), err
	}
	if len(data) == 0 {
		return cbor.Null(), ErrEmptyBody
	}
	return cbor.Decode(data)
}

// RequestID returns the request's X-Request-ID, or a new ID if absent.
func RequestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	return uuid.New().String()
}

// Authorize wraps next with bearer-token authentication. The token is
// accepted from the Authorization header or the token query parameter.
// An empty token disables the check.
func Authorize(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get(TokenQueryParam)
		if auth := r.Header.Get("Authorization"); auth != "" {
			got = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="device"`)
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireVersion wraps next so that every response carries the local API
// version and requests from an incompatible panel are rejected with 400.
func RequireVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(version.Header, version.Current)
		if err := version.Check(r.Header.Get(version.Header)); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EventWriter writes base64 CBOR messages to an event stream.
// It is safe for concurrent use.
type EventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewEventWriter sends the event-stream response headers and returns a
// writer for the stream.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", EventStreamContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &EventWriter{w: w, flusher: flusher}, nil
}

// Send writes one message. An empty name sends an unnamed message.
func (e *EventWriter) Send(name string, v cbor.Value) error {
	return e.send("", name, cbor.EncodeBase64(v))
}

// SendID writes one message with an SSE id field.
func (e *EventWriter) SendID(id, name string, v cbor.Value) error {
	return e.send(id, name, cbor.EncodeBase64(v))
}

// SendRaw writes a message whose data field is not produced by the encoder.
func (e *EventWriter) SendRaw(name, data string) error {
	return e.send("", name, data)
}

// Comment writes an SSE comment line, used as a keep-alive.
func (e *EventWriter) Comment(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := fmt.Fprintf(e.w, ": %s\n\n", text); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *EventWriter) send(id, name, data string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sb strings.Builder
	if id != "" {
		sb.WriteString("id: " + id + "\n")
	}
	if name != "" {
		sb.WriteString("event: " + name + "\n")
	}
	sb.WriteString("data: " + data + "\n\n")

	if _, err := e.w.Write([]byte(sb.String())); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	e.flusher.Flush()
	return nil
}
