package transport

import (
	"context"
	"errors"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/version"
)

// Follow subscribes to path and subscribes again, after a backoff delay,
// whenever the stream ends or cannot be opened. Messages from every
// connection arrive on the returned channel, which is closed when ctx is
// done or the device rejects the subscription for good (unauthorized, not
// found or an incompatible version). A nil backoff uses the defaults.
func (c *Client) Follow(ctx context.Context, path string, backoff *Backoff) <-chan Event {
	if backoff == nil {
		backoff = NewBackoff(DefaultBackoffConfig())
	}
	out := make(chan Event)

	go func() {
		defer close(out)

		for {
			events, err := c.Subscribe(ctx, path)
			switch {
			case err == nil:
				backoff.Reset()
				for ev := range events {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			case permanent(err):
				return
			}

			if ctx.Err() != nil {
				return
			}

			timer := time.NewTimer(backoff.Next())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	return out
}

// permanent reports whether retrying a subscription cannot succeed.
func permanent(err error) bool {
	return errors.Is(err, ErrUnauthorized) || IsNotFound(err) || errors.Is(err, version.ErrIncompatible)
}
