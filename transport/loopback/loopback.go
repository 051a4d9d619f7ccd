// Package loopback provides an in-process mqroute.Transport.
//
// Messages published on a Transport are delivered synchronously to its
// receiver whenever the topic matches one of the filters subscribed so far,
// following MQTT filter semantics. It needs no broker, which makes it handy
// for tests and for running an application locally.
package loopback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/gonzalop/mqroute"
)

// Transport is an in-memory broker for a single subscriber.
type Transport struct {
	logger *slog.Logger

	mu       sync.Mutex
	filters  []string
	calls    []string
	receiver mqroute.MessageFunc
	closed   bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New returns an empty loopback transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetReceiver implements mqroute.Deliverer.
func (t *Transport) SetReceiver(fn mqroute.MessageFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = fn
}

// Subscribe adds filter to the set of subscribed filters. Every call is
// recorded, including repeated ones.
func (t *Transport) Subscribe(ctx context.Context, filter string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return mqroute.ErrNotConnected
	}
	t.calls = append(t.calls, filter)
	if !slices.Contains(t.filters, filter) {
		t.filters = append(t.filters, filter)
	}
	return nil
}

// Publish delivers payload to the receiver if topic matches any subscribed
// filter. Delivery happens at most once per publish, however many filters
// match, the same way a broker treats overlapping subscriptions of one
// client.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return mqroute.ErrNotConnected
	}
	receiver := t.receiver
	matched := slices.ContainsFunc(t.filters, func(f string) bool {
		return mqroute.MatchTopic(f, topic)
	})
	t.mu.Unlock()

	if !matched {
		t.logger.Debug("loopback: no subscriber", "topic", topic)
		return nil
	}
	if receiver == nil {
		return fmt.Errorf("loopback: no receiver for %q", topic)
	}

	// The receiver may keep the slice.
	receiver(topic, slices.Clone(payload))
	return nil
}

// SubscribeCalls returns every filter passed to Subscribe, in call order.
func (t *Transport) SubscribeCalls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.calls)
}

// Filters returns the distinct subscribed filters.
func (t *Transport) Filters() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.filters)
}

// Close stops the transport. Later calls to Subscribe and Publish return
// mqroute.ErrNotConnected.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
