package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/discovery"
	"github.com/mash-protocol/mash-panel/pkg/transport"
)

// newDevice starts a fake device serving a single setting and a short
// event stream.
func newDevice(t *testing.T) (*transport.Client, *httptest.Server) {
	t.Helper()

	var stored cbor.Value = cbor.Map(cbor.Pair{Key: "mode", Value: cbor.Text("eco")})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/settings/mode", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = transport.WriteValue(w, http.StatusOK, stored)
		case http.MethodPut, http.MethodPost:
			v, err := transport.ReadValue(r)
			if err != nil {
				transport.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			stored = v
			_ = transport.WriteValue(w, http.StatusOK, stored)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/api/v1/telemetry", func(w http.ResponseWriter, r *http.Request) {
		ew, err := transport.NewEventWriter(w)
		if err != nil {
			return
		}
		_ = ew.Send("settings", stored)
		_ = ew.SendRaw("telemetry", "not-base64!")
		for i := 1; i <= 3; i++ {
			_ = ew.SendID(string(rune('0'+i)), "telemetry", cbor.Map(cbor.Pair{Key: "seq", Value: cbor.Int(int64(i))}))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := transport.NewClient(transport.ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	return c, srv
}

func TestRunGet(t *testing.T) {
	c, _ := newDevice(t)

	var out bytes.Buffer
	require.NoError(t, RunGet(context.Background(), c, "/api/v1/settings/mode", FormatJSON, &out))
	assert.Equal(t, `{"mode":"eco"}`+"\n", out.String())
}

func TestRunGetNotFound(t *testing.T) {
	c, _ := newDevice(t)

	var out bytes.Buffer
	err := RunGet(context.Background(), c, "/api/v1/settings/missing", FormatJSON, &out)
	assert.True(t, transport.IsNotFound(err), "got %v", err)
	assert.Empty(t, out.String())
}

func TestRunSend(t *testing.T) {
	c, _ := newDevice(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, RunSend(ctx, c, http.MethodPut, "/api/v1/settings/mode", []byte("mode: fast\nlimit: 16\n"), FormatDiag, &out))
	assert.Equal(t, `{"mode": "fast", "limit": 16}`+"\n", out.String())

	out.Reset()
	require.NoError(t, RunSend(ctx, c, http.MethodPost, "/api/v1/settings/mode", []byte(`[1, 2]`), FormatJSON, &out))
	assert.Equal(t, "[1,2]\n", out.String())

	assert.Error(t, RunSend(ctx, c, http.MethodPatch, "/api/v1/settings/mode", []byte("1"), FormatJSON, &out))
	assert.Error(t, RunSend(ctx, c, http.MethodPut, "/api/v1/settings/mode", []byte("a: [1"), FormatJSON, &out))
}

func TestRunDelete(t *testing.T) {
	c, _ := newDevice(t)
	assert.NoError(t, RunDelete(context.Background(), c, "/api/v1/settings/mode"))
}

func TestRunWatch(t *testing.T) {
	c, _ := newDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := RunWatch(ctx, c, "/api/v1/telemetry", WatchOptions{
		Format: FormatDiag,
		Events: []string{"telemetry"},
		Limit:  2,
	}, &out)
	require.NoError(t, err)

	want := "# telemetry (id 1)\n{\"seq\": 1}\n# telemetry (id 2)\n{\"seq\": 2}\n"
	assert.Equal(t, want, out.String())
}

func TestRunWatchUntilStreamEnds(t *testing.T) {
	c, _ := newDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, RunWatch(ctx, c, "/api/v1/telemetry", WatchOptions{Format: FormatJSON}, &out))

	// The malformed payload is skipped; the snapshot and three samples remain.
	assert.Equal(t, 4, strings.Count(out.String(), "# "))
	assert.Contains(t, out.String(), "# settings\n")
}

func TestRunWatchFollow(t *testing.T) {
	c, _ := newDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Each connection carries three samples; the fourth comes from a reconnect.
	var out bytes.Buffer
	err := RunWatch(ctx, c, "/api/v1/telemetry", WatchOptions{
		Format: FormatDiag,
		Events: []string{"telemetry"},
		Limit:  4,
		Follow: true,
		Backoff: transport.NewBackoff(transport.BackoffConfig{
			Initial: 5 * time.Millisecond,
			Max:     10 * time.Millisecond,
		}),
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out.String(), "# telemetry (id 1)\n"))
	assert.Equal(t, 4, strings.Count(out.String(), "# telemetry"))
}

func TestFormatService(t *testing.T) {
	svc := &discovery.Service{
		InstanceName: "PanelDevice-SN-0001",
		Port:         8080,
		Addresses:    []string{"192.0.2.10", "fe80::1"},
		Serial:       "SN-0001",
		Model:        "PanelDevice",
		APIPath:      "/api/v1",
		Auth:         discovery.AuthBearer,
	}

	var out bytes.Buffer
	formatService(&out, svc)

	output := out.String()
	assert.Contains(t, output, "PanelDevice-SN-0001\n")
	assert.Contains(t, output, "API: http://192.0.2.10:8080/api/v1")
	assert.Contains(t, output, "Addresses: 192.0.2.10, fe80::1")
	assert.Contains(t, output, "Auth: bearer")
}

func TestFormatServiceWithoutAddress(t *testing.T) {
	svc := &discovery.Service{InstanceName: "x", Host: "dev.local.", Port: 9000, Serial: "S"}

	var out bytes.Buffer
	formatService(&out, svc)
	assert.Contains(t, out.String(), "Host: dev.local. port 9000")
}
