package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mash-protocol/mash-panel/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// jsonEvent is the JSONL layout of an event, with enum names spelled out.
type jsonEvent struct {
	Timestamp  string          `json:"timestamp"`
	RequestID  string          `json:"requestId,omitempty"`
	Direction  string          `json:"direction"`
	Channel    string          `json:"channel"`
	Category   string          `json:"category"`
	Role       string          `json:"role"`
	RemoteAddr string          `json:"remoteAddr,omitempty"`
	Method     string          `json:"method,omitempty"`
	Path       string          `json:"path,omitempty"`
	Status     int             `json:"status,omitempty"`
	Size       *int            `json:"size,omitempty"`
	EventName  string          `json:"event,omitempty"`
	DurationNs *int64          `json:"durationNs,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      *jsonError      `json:"error,omitempty"`
}

type jsonError struct {
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Context    string `json:"context,omitempty"`
	Structural bool   `json:"structural,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
}

func toJSONEvent(event log.Event) (jsonEvent, error) {
	je := jsonEvent{
		Timestamp:  event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		RequestID:  event.RequestID,
		Direction:  event.Direction.String(),
		Channel:    event.Channel.String(),
		Category:   event.Category.String(),
		Role:       event.LocalRole.String(),
		RemoteAddr: event.RemoteAddr,
	}

	if ex := event.Exchange; ex != nil {
		je.Method = ex.Method
		je.Path = ex.Path
		je.Status = ex.Status
		size := ex.Size
		je.Size = &size
		je.EventName = ex.EventName
		if ex.Duration != nil {
			ns := ex.Duration.Nanoseconds()
			je.DurationNs = &ns
		}
		if ex.Payload != nil {
			raw, err := ex.Payload.MarshalJSON()
			if err != nil {
				return jsonEvent{}, err
			}
			je.Payload = raw
		}
	}

	if e := event.Error; e != nil {
		je.Error = &jsonError{
			Stage:      e.Stage.String(),
			Message:    e.Message,
			Context:    e.Context,
			Structural: e.Structural,
			Fallback:   e.Fallback,
		}
	}
	return je, nil
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		je, err := toJSONEvent(event)
		if err != nil {
			return fmt.Errorf("failed to convert event: %w", err)
		}
		if err := encoder.Encode(je); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{"timestamp", "request_id", "role", "direction", "channel", "category", "method", "path", "status", "size", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var method, path, status, size, errMsg string
		if ex := event.Exchange; ex != nil {
			method = ex.Method
			path = ex.Path
			if ex.Status != 0 {
				status = strconv.Itoa(ex.Status)
			}
			size = strconv.Itoa(ex.Size)
		}
		if event.Error != nil {
			errMsg = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.RequestID,
			event.LocalRole.String(),
			event.Direction.String(),
			event.Channel.String(),
			event.Category.String(),
			method,
			path,
			status,
			size,
			errMsg,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
