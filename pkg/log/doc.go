// Package log provides protocol logging for panel/device exchanges.
//
// This package defines the Logger interface and Event types for capturing
// every CBOR exchange between the control panel and the device: HTTP request
// and response bodies and event-stream messages. It is separate from
// operational logging (slog) - protocol capture provides a complete
// machine-readable trace for debugging malformed payloads.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For field captures: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/panel/device.plog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events carry one of two payloads:
//   - Exchange: a body or stream message that was encoded or decoded
//   - Error: a transport failure or a payload that failed to decode
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. The
// panel-cbor CLI "log" command prints them.
package log
