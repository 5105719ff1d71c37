// Package commands implements the panel-cbor CLI commands.
package commands

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

// Wire formats for CBOR bytes on the command line.
const (
	WireHex    = "hex"
	WireBase64 = "base64"
	WireRaw    = "raw"
)

// Value formats for printing decoded values.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatDiag = "diag"
)

// ParseInput builds a value from a YAML or JSON document.
func ParseInput(data []byte) (cbor.Value, error) {
	return cbor.ParseYAML(data)
}

// EncodeWire renders encoded bytes in the given wire format.
func EncodeWire(data []byte, wire string) ([]byte, error) {
	switch wire {
	case WireHex:
		return []byte(hex.EncodeToString(data) + "\n"), nil
	case WireBase64:
		return []byte(base64.StdEncoding.EncodeToString(data) + "\n"), nil
	case WireRaw:
		return data, nil
	default:
		return nil, fmt.Errorf("unknown wire format: %s (supported: hex, base64, raw)", wire)
	}
}

// DecodeWire extracts CBOR bytes from input in the given wire format.
// Hex input may contain whitespace and a 0x prefix.
func DecodeWire(input []byte, wire string) ([]byte, error) {
	switch wire {
	case WireHex:
		s := strings.Join(strings.Fields(string(input)), "")
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return data, nil
	case WireBase64:
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(input)))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 input: %w", err)
		}
		return data, nil
	case WireRaw:
		return input, nil
	default:
		return nil, fmt.Errorf("unknown wire format: %s (supported: hex, base64, raw)", wire)
	}
}

// WriteValue prints v in the given value format.
func WriteValue(w io.Writer, v cbor.Value, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		data, err := v.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to write JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatDiag:
		_, err := fmt.Fprintln(w, v.String())
		return err
	default:
		return fmt.Errorf("unknown format: %s (supported: yaml, json, diag)", format)
	}
}

// RunEncode reads a YAML or JSON document from r and writes its CBOR
// encoding to w.
func RunEncode(r io.Reader, w io.Writer, wire string) error {
	input, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	v, err := ParseInput(input)
	if err != nil {
		return err
	}
	out, err := EncodeWire(cbor.Encode(v), wire)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// DecodeOptions controls the decode command.
type DecodeOptions struct {
	// Input is the wire format of the input (hex, base64, raw).
	Input string

	// Output is the value format (yaml, json, diag).
	Output string

	// Strict rejects trailing bytes after the first item.
	Strict bool
}

// RunDecode reads CBOR bytes from r and prints the decoded value to w.
func RunDecode(r io.Reader, w io.Writer, opts DecodeOptions) error {
	input, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	data, err := DecodeWire(input, opts.Input)
	if err != nil {
		return err
	}

	v, rest, err := cbor.DecodeFirst(data)
	if err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	if len(rest) > 0 && opts.Strict {
		return fmt.Errorf("%d trailing bytes after first item", len(rest))
	}

	// Diagnostic output shows the wire form, including tags and lengths
	// the value model drops.
	if opts.Output == FormatDiag {
		diag, err := cbor.Diagnose(data)
		if err == nil {
			_, err = fmt.Fprintln(w, diag)
			return err
		}
	}
	return WriteValue(w, v, opts.Output)
}
