package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/transport"
)

// RunGet fetches path from the device and prints the decoded body.
func RunGet(ctx context.Context, c *transport.Client, path, format string, w io.Writer) error {
	v, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return WriteValue(w, v, format)
}

// RunSend sends a YAML or JSON document as a CBOR body with method (PUT or
// POST) and prints the decoded response.
func RunSend(ctx context.Context, c *transport.Client, method, path string, body []byte, format string, w io.Writer) error {
	v, err := ParseInput(body)
	if err != nil {
		return err
	}

	var resp cbor.Value
	switch method {
	case http.MethodPut:
		resp, err = c.Put(ctx, path, v)
	case http.MethodPost:
		resp, err = c.Post(ctx, path, v)
	default:
		return fmt.Errorf("unsupported method: %s", method)
	}
	if err != nil {
		return err
	}
	return WriteValue(w, resp, format)
}

// RunDelete deletes path on the device.
func RunDelete(ctx context.Context, c *transport.Client, path string) error {
	return c.Delete(ctx, path)
}

// WatchOptions controls the watch command.
type WatchOptions struct {
	// Format is the value format (yaml, json, diag).
	Format string

	// Events keeps only messages with these names. Empty keeps all.
	Events []string

	// Limit stops after this many messages. Zero means no limit.
	Limit int

	// Follow reconnects with backoff when the stream ends.
	Follow bool

	// Backoff overrides the reconnect delays used with Follow.
	Backoff *transport.Backoff
}

// RunWatch prints each message of the event stream at path until ctx is
// done, the stream ends or the limit is reached. With opts.Follow the stream
// is reopened after it ends.
func RunWatch(ctx context.Context, c *transport.Client, path string, opts WatchOptions, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan transport.Event
	if opts.Follow {
		events = c.Follow(ctx, path, opts.Backoff)
	} else {
		var err error
		if events, err = c.Subscribe(ctx, path); err != nil {
			return err
		}
	}

	keep := make(map[string]bool, len(opts.Events))
	for _, name := range opts.Events {
		keep[name] = true
	}

	count := 0
	for ev := range events {
		if len(keep) > 0 && !keep[ev.Name] {
			continue
		}
		if ev.ID != "" {
			fmt.Fprintf(w, "# %s (id %s)\n", ev.Name, ev.ID)
		} else {
			fmt.Fprintf(w, "# %s\n", ev.Name)
		}
		if err := WriteValue(w, ev.Value, opts.Format); err != nil {
			return err
		}

		count++
		if opts.Limit > 0 && count >= opts.Limit {
			return nil
		}
	}
	return nil
}
