package log

import (
	"time"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

// Event represents one protocol log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// RequestID correlates the events of one exchange (UUID).
	RequestID string `cbor:"2,keyasint"`

	// Direction indicates payload flow relative to the local side.
	Direction Direction `cbor:"3,keyasint"`

	// Channel is the transport the payload travelled on.
	Channel Channel `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the panel or the device.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (host:port or URL).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Exchange *ExchangeEvent  `cbor:"10,keyasint,omitempty"`
	Error    *ErrorEventData `cbor:"11,keyasint,omitempty"`
}

// Direction indicates the direction of payload flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming payload.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing payload.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Channel identifies the transport carrying a payload.
type Channel uint8

const (
	// ChannelHTTP is a request or response body.
	ChannelHTTP Channel = 0
	// ChannelSSE is a base64 payload on the event stream.
	ChannelSSE Channel = 1
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelHTTP:
		return "HTTP"
	case ChannelSSE:
		return "SSE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryExchange indicates a payload that was encoded or decoded.
	CategoryExchange Category = 0
	// CategoryError indicates a failed exchange.
	CategoryError Category = 1
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryExchange:
		return "EXCHANGE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which end of the link logged the event.
type Role uint8

const (
	// RolePanel is the control panel (HTTP client, stream subscriber).
	RolePanel Role = 0
	// RoleDevice is the device (HTTP server, stream publisher).
	RoleDevice Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RolePanel:
		return "PANEL"
	case RoleDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ExchangeEvent captures one encoded or decoded payload.
type ExchangeEvent struct {
	// Method is the HTTP method (empty for stream messages).
	Method string `cbor:"1,keyasint,omitempty"`

	// Path is the request path.
	Path string `cbor:"2,keyasint"`

	// Status is the HTTP status code (responses only).
	Status int `cbor:"3,keyasint,omitempty"`

	// Size is the payload size in bytes before base64 wrapping.
	Size int `cbor:"4,keyasint"`

	// Payload is the decoded value, when decoding succeeded.
	Payload *cbor.Value `cbor:"5,keyasint,omitempty"`

	// Duration is the time from request to response (responses only).
	Duration *time.Duration `cbor:"6,keyasint,omitempty"`

	// EventName is the SSE event field (stream messages only).
	EventName string `cbor:"7,keyasint,omitempty"`
}

// Stage names the step of an exchange that failed.
type Stage uint8

const (
	// StageTransport is a network or HTTP-level failure.
	StageTransport Stage = 0
	// StageDecode is a payload that could not be decoded.
	StageDecode Stage = 1
	// StageStatus is a non-success HTTP status.
	StageStatus Stage = 2
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageTransport:
		return "TRANSPORT"
	case StageDecode:
		return "DECODE"
	case StageStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a failed exchange.
type ErrorEventData struct {
	// Stage where the error occurred.
	Stage Stage `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`

	// Structural is set when the payload was malformed CBOR.
	Structural bool `cbor:"4,keyasint,omitempty"`

	// Fallback is set when the caller substituted a default value.
	Fallback bool `cbor:"5,keyasint,omitempty"`
}
