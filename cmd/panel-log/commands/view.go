// Package commands implements the panel-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Channel   *log.Channel
	Direction *log.Direction
	Category  *log.Category
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [req:id] ROLE DIRECTION CHANNEL Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	reqID := shortenRequestID(event.RequestID)

	var typeLabel string
	switch {
	case event.Exchange != nil:
		typeLabel = exchangeLabel(event.Exchange)
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [req:%s] %s %-3s %s %s\n",
		ts, reqID, event.LocalRole, event.Direction, event.Channel, typeLabel)

	switch {
	case event.Exchange != nil:
		formatExchangeDetails(w, event.Exchange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	fmt.Fprintln(w) // Blank line between events
}

// exchangeLabel returns "GET /path", "event telemetry" or the bare path.
func exchangeLabel(ex *log.ExchangeEvent) string {
	switch {
	case ex.Method != "":
		return ex.Method + " " + ex.Path
	case ex.EventName != "":
		return "event " + ex.EventName
	default:
		return ex.Path
	}
}

// shortenRequestID returns the first 8 characters of the request ID.
func shortenRequestID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatExchangeDetails writes exchange-specific details.
func formatExchangeDetails(w io.Writer, ex *log.ExchangeEvent) {
	if ex.Status != 0 {
		fmt.Fprintf(w, "  Status: %d\n", ex.Status)
	}
	fmt.Fprintf(w, "  Size: %d bytes\n", ex.Size)
	if ex.Duration != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*ex.Duration))
	}
	if ex.Payload != nil {
		fmt.Fprintf(w, "  Payload: %s\n", ex.Payload.String())
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Stage: %s\n", err.Stage)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
	if err.Structural {
		fmt.Fprintln(w, "  Malformed CBOR")
	}
	if err.Fallback {
		fmt.Fprintln(w, "  Default value substituted")
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseChannelFlag parses a channel string from command-line flag (case-insensitive).
func ParseChannelFlag(s string) (log.Channel, error) {
	return parseChannel(s)
}

func parseChannel(s string) (log.Channel, error) {
	switch strings.ToLower(s) {
	case "http":
		return log.ChannelHTTP, nil
	case "sse":
		return log.ChannelSSE, nil
	default:
		return 0, fmt.Errorf("invalid channel: %s (must be http or sse)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "exchange":
		return log.CategoryExchange, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be exchange or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		Channel:   filter.Channel,
		Direction: filter.Direction,
		Category:  filter.Category,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
