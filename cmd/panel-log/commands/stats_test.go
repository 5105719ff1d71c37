package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/log"
)

func TestStatsCountsByChannel(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Channel: log.ChannelHTTP, Category: log.CategoryExchange},
		{Timestamp: ts, Channel: log.ChannelHTTP, Category: log.CategoryExchange},
		{Timestamp: ts, Channel: log.ChannelSSE, Category: log.CategoryExchange},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Total Events: 3") {
		t.Errorf("expected total count, got: %s", output)
	}
	if !strings.Contains(output, "HTTP:") {
		t.Error("expected HTTP channel in output")
	}
	if !strings.Contains(output, "SSE:") {
		t.Error("expected SSE channel in output")
	}
}

func TestStatsPathsAndErrors(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryExchange, Exchange: &log.ExchangeEvent{Path: "/api/v1/settings", Size: 10}},
		{Timestamp: ts, Category: log.CategoryExchange, Exchange: &log.ExchangeEvent{Path: "/api/v1/settings", Size: 5}},
		{Timestamp: ts.Add(90 * time.Second), Category: log.CategoryError,
			Error: &log.ErrorEventData{Stage: log.StageDecode, Message: "bad", Fallback: true}},
		{Timestamp: ts, Category: log.CategoryError,
			Error: &log.ErrorEventData{Stage: log.StageTransport, Message: "refused"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Paths: 1",
		"/api/v1/settings: 2 exchanges, 15 bytes",
		"Errors: 2",
		"Decode:    1",
		"Fallbacks: 1",
		"Duration:   1m30s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Total Events: 0") {
		t.Errorf("expected zero events, got: %s", output)
	}
	if strings.Contains(output, "Time Range") {
		t.Errorf("empty log should not print a time range, got: %s", output)
	}
}
