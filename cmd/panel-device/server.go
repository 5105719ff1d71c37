package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/log"
	"github.com/mash-protocol/mash-panel/pkg/store"
	"github.com/mash-protocol/mash-panel/pkg/transport"
	apiversion "github.com/mash-protocol/mash-panel/pkg/version"
)

const settingsPrefix = "/api/v1/settings/"

// ServerConfig holds configuration for the device HTTP server.
type ServerConfig struct {
	Port     int
	DBPath   string
	Token    string
	Interval time.Duration
	Version  string
	Device   *DeviceConfig

	// Logger receives protocol events. Nil disables protocol logging.
	Logger log.Logger
}

// Server is the HTTP server standing in for the device firmware.
type Server struct {
	config ServerConfig
	mux    *http.ServeMux
	server *http.Server
	store  *store.Store
	hub    *hub
	logger log.Logger
}

// NewServer creates a new server with the given configuration.
// An empty settings store is seeded from the device config.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Device == nil {
		cfg.Device = DefaultDeviceConfig()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	count, err := st.Count()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to count settings: %w", err)
	}
	if count == 0 && cfg.Device.Settings.Len() > 0 {
		if err := st.Load(cfg.Device.Settings); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to seed settings: %w", err)
		}
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		store:  st,
		hub:    newHub(),
		logger: log.OrNoop(cfg.Logger),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.mux.Handle("/api/v1/settings", s.authorize(s.handleSettings))
	s.mux.Handle(settingsPrefix, s.authorize(s.handleSetting))
	s.mux.Handle("/api/v1/telemetry", s.authorize(s.handleTelemetry))
	s.mux.Handle("/api/v1/echo", s.authorize(s.handleEcho))
}

func (s *Server) authorize(h http.HandlerFunc) http.Handler {
	return transport.Authorize(s.config.Token, h)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return transport.RequireVersion(s.mux)
}

// handleHealth returns the server health status as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	count, err := s.store.Count()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     version,
		"apiVersion":  apiversion.Current,
		"serial":      s.config.Device.Serial,
		"model":       s.config.Device.Model,
		"settings":    count,
		"subscribers": s.hub.count(),
	})
}

// handleSettings returns all settings as one CBOR map.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	reqID := s.begin(w, r)
	snap, err := s.store.Snapshot()
	if err != nil {
		s.fail(w, r, reqID, http.StatusInternalServerError, log.StageDecode, err)
		return
	}
	s.reply(w, r, reqID, http.StatusOK, snap)
}

// handleSetting serves GET, PUT, POST (merge patch) and DELETE on
// /api/v1/settings/{name}.
func (s *Server) handleSetting(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, settingsPrefix)
	if name == "" || strings.Contains(name, "/") {
		transport.WriteError(w, http.StatusNotFound, "no such setting")
		return
	}

	reqID := s.begin(w, r)

	switch r.Method {
	case http.MethodGet:
		v, ok, err := s.store.Get(name)
		if err != nil {
			s.fail(w, r, reqID, http.StatusInternalServerError, log.StageDecode, err)
			return
		}
		if !ok {
			transport.WriteError(w, http.StatusNotFound, fmt.Sprintf("setting %q not found", name))
			return
		}
		s.reply(w, r, reqID, http.StatusOK, v)

	case http.MethodPut:
		body, ok := s.readBody(w, r, reqID)
		if !ok {
			return
		}
		s.saveSetting(w, r, reqID, name, func(cbor.Value, bool) cbor.Value {
			return body
		})

	case http.MethodPost:
		body, ok := s.readBody(w, r, reqID)
		if !ok {
			return
		}
		s.saveSetting(w, r, reqID, name, func(current cbor.Value, _ bool) cbor.Value {
			return mergePatch(current, body)
		})

	case http.MethodDelete:
		deleted, err := s.store.Delete(name)
		if err != nil {
			s.fail(w, r, reqID, http.StatusInternalServerError, log.StageTransport, err)
			return
		}
		if !deleted {
			transport.WriteError(w, http.StatusNotFound, fmt.Sprintf("setting %q not found", name))
			return
		}
		s.hub.publish("setting", cbor.Map(
			cbor.Pair{Key: "name", Value: cbor.Text(name)},
			cbor.Pair{Key: "deleted", Value: cbor.Bool(true)},
		))
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}

// saveSetting stores the result of update and replies with the stored value.
func (s *Server) saveSetting(w http.ResponseWriter, r *http.Request, reqID, name string, update func(cbor.Value, bool) cbor.Value) {
	stored, created, err := s.store.Update(name, update)
	if err != nil {
		status, stage := http.StatusInternalServerError, log.StageTransport
		switch {
		case errors.Is(err, store.ErrInvalidName):
			status = http.StatusBadRequest
		case cbor.IsStructural(err):
			stage = log.StageDecode
		}
		s.fail(w, r, reqID, status, stage, err)
		return
	}

	s.hub.publish("setting", cbor.Map(
		cbor.Pair{Key: "name", Value: cbor.Text(name)},
		cbor.Pair{Key: "value", Value: stored},
	))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.reply(w, r, reqID, status, stored)
}

// handleEcho decodes the request body and encodes it back.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	reqID := s.begin(w, r)
	body, ok := s.readBody(w, r, reqID)
	if !ok {
		return
	}
	s.reply(w, r, reqID, http.StatusOK, body)
}

// handleTelemetry streams simulated telemetry and setting changes.
// The first message is a "settings" snapshot.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	reqID := s.begin(w, r)

	snap, err := s.store.Snapshot()
	if err != nil {
		s.fail(w, r, reqID, http.StatusInternalServerError, log.StageDecode, err)
		return
	}

	ew, err := transport.NewEventWriter(w)
	if err != nil {
		s.fail(w, r, reqID, http.StatusInternalServerError, log.StageTransport, err)
		return
	}

	notifications := s.hub.subscribe()
	defer s.hub.unsubscribe(notifications)

	send := func(id, name string, v cbor.Value) bool {
		if err := ew.SendID(id, name, v); err != nil {
			s.logError(r, reqID, log.ChannelSSE, log.StageTransport, err)
			return false
		}
		s.logExchange(r, reqID, log.ChannelSSE, log.DirectionOut, &log.ExchangeEvent{
			Path:      r.URL.Path,
			Size:      len(cbor.Encode(v)),
			Payload:   &v,
			EventName: name,
		})
		return true
	}

	if !send("", "settings", snap) {
		return
	}

	sim := NewSimulator(s.config.Device.Type)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			sample := sim.Next()
			if !send(strconv.FormatInt(sim.seq, 10), "telemetry", sample) {
				return
			}
		case n := <-notifications:
			if !send("", n.name, n.value) {
				return
			}
		}
	}
}

// begin assigns the request ID and echoes it in the response.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) string {
	reqID := transport.RequestID(r)
	w.Header().Set(transport.HeaderRequestID, reqID)
	return reqID
}

// readBody decodes the request body. On failure it writes a 400 (or 413)
// CBOR error response and returns false.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, reqID string) (cbor.Value, bool) {
	v, err := transport.ReadValue(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, transport.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(w, r, reqID, status, log.StageDecode, err)
		return cbor.Null(), false
	}

	size := int(r.ContentLength)
	if size < 0 {
		size = len(cbor.Encode(v))
	}
	s.logExchange(r, reqID, log.ChannelHTTP, log.DirectionIn, &log.ExchangeEvent{
		Method:  r.Method,
		Path:    r.URL.Path,
		Size:    size,
		Payload: &v,
	})
	return v, true
}

// reply writes v as the CBOR response body.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, reqID string, status int, v cbor.Value) {
	data := cbor.Encode(v)
	w.Header().Set("Content-Type", transport.ContentType)
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logError(r, reqID, log.ChannelHTTP, log.StageTransport, err)
		return
	}
	s.logExchange(r, reqID, log.ChannelHTTP, log.DirectionOut, &log.ExchangeEvent{
		Method:  r.Method,
		Path:    r.URL.Path,
		Status:  status,
		Size:    len(data),
		Payload: &v,
	})
}

// fail logs err and writes it as a CBOR error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, reqID string, status int, stage log.Stage, err error) {
	s.logError(r, reqID, log.ChannelHTTP, stage, err)
	transport.WriteError(w, status, err.Error())
}

func (s *Server) logExchange(r *http.Request, reqID string, ch log.Channel, dir log.Direction, ex *log.ExchangeEvent) {
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		RequestID:  reqID,
		Direction:  dir,
		Channel:    ch,
		Category:   log.CategoryExchange,
		LocalRole:  log.RoleDevice,
		RemoteAddr: r.RemoteAddr,
		Exchange:   ex,
	})
}

func (s *Server) logError(r *http.Request, reqID string, ch log.Channel, stage log.Stage, err error) {
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		RequestID:  reqID,
		Direction:  log.DirectionIn,
		Channel:    ch,
		Category:   log.CategoryError,
		LocalRole:  log.RoleDevice,
		RemoteAddr: r.RemoteAddr,
		Error: &log.ErrorEventData{
			Stage:      stage,
			Message:    err.Error(),
			Context:    r.Method + " " + r.URL.Path,
			Structural: cbor.IsStructural(err),
		},
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Close closes the store.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	transport.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// notification is a message pushed to every open stream.
type notification struct {
	name  string
	value cbor.Value
}

// hub fans out notifications to stream subscribers. A subscriber that falls
// behind misses notifications rather than blocking the publisher.
type hub struct {
	mu   sync.Mutex
	subs map[chan notification]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan notification]struct{})}
}

func (h *hub) subscribe() chan notification {
	ch := make(chan notification, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan notification) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) publish(name string, v cbor.Value) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- notification{name: name, value: v}:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
