package log

import (
	"fmt"
	"io"

	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

// Decode limits for log files. A logged payload may be as deep and as large
// as anything the codec accepts; the Event and ExchangeEvent maps add two
// levels on top of it.
const (
	maxLogNestedLevels = cbor.MaxNestingDepth + 2
	maxLogElements     = 1 << 20
)

// logEncMode is the CBOR encoder mode for log events.
// Configured for nanosecond-precision timestamps and deterministic encoding.
var logEncMode fxcbor.EncMode

// logDecMode is the CBOR decoder mode for log events.
var logDecMode fxcbor.DecMode

func init() {
	var err error

	// Uses RFC3339Nano for nanosecond-precision timestamps
	encOpts := fxcbor.EncOptions{
		Sort:          fxcbor.SortCanonical,
		IndefLength:   fxcbor.IndefLengthForbidden,
		NilContainers: fxcbor.NilContainerAsNull,
		Time:          fxcbor.TimeRFC3339Nano,
	}
	logEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR encoder mode: %v", err))
	}

	decOpts := fxcbor.DecOptions{
		DupMapKey:         fxcbor.DupMapKeyQuiet,
		IndefLength:       fxcbor.IndefLengthAllowed,
		ExtraReturnErrors: fxcbor.ExtraDecErrorNone,
		MaxNestedLevels:   maxLogNestedLevels,
		MaxArrayElements:  maxLogElements,
		MaxMapPairs:       maxLogElements,
	}
	logDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR decoder mode: %v", err))
	}
}

// EncodeEvent encodes an Event to CBOR bytes using integer keys for compactness.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates a CBOR encoder for log events that writes to w.
func NewEncoder(w io.Writer) *fxcbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder creates a CBOR decoder for log events that reads from r.
func NewDecoder(r io.Reader) *fxcbor.Decoder {
	return logDecMode.NewDecoder(r)
}
