// Package transport carries CBOR values between the control panel and the
// device over HTTP.
//
// Request and response bodies are raw CBOR with content type
// application/cbor. The device pushes telemetry over a Server-Sent-Events
// stream where each data field is a base64 (RFC 4648 standard alphabet)
// encoding of one CBOR item.
//
// # Client
//
// Client resolves request paths against a base URL and attaches the bearer
// token (as an Authorization header on plain requests and as a token query
// parameter on event streams, which browsers cannot decorate with headers).
// Every exchange gets a request ID that is sent as X-Request-ID and recorded
// in the protocol log.
//
// A payload that fails to decode is an error, never a silent null. Callers
// that want to keep going with a default use GetOr, which logs the fallback.
//
// # Server
//
// WriteValue, ReadValue, NewEventWriter and Authorize are the device-side
// counterparts used by the mock device and by tests.
package transport
