package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        500 * time.Millisecond,
		Multiplier: 2.0,
	})

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond, // Max
		500 * time.Millisecond,
	}

	for i, exp := range expected {
		assert.Equal(t, exp, b.Next(), "attempt %d", i)
	}
	assert.Equal(t, len(expected), b.Attempts())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.Current())
	assert.Zero(t, b.Attempts())
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(BackoffConfig{})
	assert.Equal(t, InitialBackoff, b.Next(), "zero Jitter must not add jitter")
	assert.Equal(t, 2*InitialBackoff, b.Current())

	// Max below Initial is raised to Initial.
	b = NewBackoff(BackoffConfig{Initial: time.Second, Max: time.Millisecond})
	b.Next()
	assert.Equal(t, time.Second, b.Current())
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff(DefaultBackoffConfig())

	upper := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))
	for i := 0; i < 10; i++ {
		b.Reset()
		d := b.Next()
		assert.GreaterOrEqual(t, d, InitialBackoff)
		assert.LessOrEqual(t, d, upper)
	}
}

func TestFollowReconnects(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)
		ew, err := NewEventWriter(w)
		if err != nil {
			return
		}
		// One message per connection, then the device hangs up.
		_ = ew.SendID(strconv.Itoa(int(n)), "telemetry", cbor.Int(int64(n)))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := client.Follow(ctx, "/api/v1/telemetry", NewBackoff(BackoffConfig{
		Initial: 5 * time.Millisecond,
		Max:     20 * time.Millisecond,
	}))

	for want := int64(1); want <= 3; want++ {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed early")
			got, _ := ev.Value.AsInt()
			assert.Equal(t, want, got)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for message %d", want)
		}
	}
	cancel()

	// The channel closes once the context is cancelled.
	for range events {
	}
	assert.GreaterOrEqual(t, connections.Load(), int32(3))
}

func TestFollowStopsOnPermanentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "no stream here")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := client.Follow(ctx, "/missing", nil)
	select {
	case _, ok := <-events:
		assert.False(t, ok, "expected the channel to close")
	case <-ctx.Done():
		t.Fatal("Follow kept retrying a missing stream")
	}
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(&StatusError{StatusCode: http.StatusUnauthorized}))
	assert.True(t, permanent(&StatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, permanent(&StatusError{StatusCode: http.StatusServiceUnavailable}))
	assert.False(t, permanent(context.DeadlineExceeded))
}
