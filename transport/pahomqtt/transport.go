// Package pahomqtt adapts the Eclipse Paho MQTT client to mqroute.Transport.
//
// The transport remembers every topic it was asked to subscribe to and
// subscribes again after each (re)connect, so routes may be registered
// before the first Connect and survive broker restarts.
//
//	transport := pahomqtt.New(pahomqtt.Config{Host: "broker.hivemq.com"},
//	    pahomqtt.WithLogger(logger))
//	router := mqroute.NewRouter(transport)
//	// register routes...
//	if err := transport.Connect(ctx); err != nil {
//	    return err
//	}
//	defer transport.Disconnect()
package pahomqtt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gonzalop/mqroute"
)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithQoS sets the QoS used for subscriptions and publications.
// The default is 1 (at least once).
func WithQoS(qos byte) Option {
	return func(t *Transport) {
		if qos <= 2 {
			t.qos = qos
		}
	}
}

// WithDisconnectQuiesce sets how long Disconnect waits for in-flight work.
// The default is 250ms.
func WithDisconnectQuiesce(d time.Duration) Option {
	return func(t *Transport) {
		t.quiesce = d
	}
}

// Transport is an mqroute.Transport backed by a Paho client.
type Transport struct {
	cfg       Config
	logger    *slog.Logger
	qos       byte
	quiesce   time.Duration
	newClient func(*mqtt.ClientOptions) mqtt.Client

	connectMu sync.Mutex // one connection attempt at a time

	mu       sync.Mutex
	client   mqtt.Client
	topics   []string
	receiver mqroute.MessageFunc
}

// New creates a disconnected transport.
func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		cfg:       cfg,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		qos:       1,
		quiesce:   250 * time.Millisecond,
		newClient: mqtt.NewClient,
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

// Connect connects to the broker and subscribes to every remembered topic.
// It is a no-op when already connected. Concurrent calls are serialized.
func (t *Transport) Connect(ctx context.Context) error {
	t.connectMu.Lock()
	defer t.connectMu.Unlock()

	if t.IsConnected() {
		return nil
	}

	opts := t.cfg.clientOptions()
	// Subscriptions carry no callback, so every PUBLISH reaches the default
	// handler exactly once however many filters match it.
	opts.SetDefaultPublishHandler(t.handleMessage)
	opts.SetOnConnectHandler(t.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.logger.Warn("connection lost", "broker", t.cfg.BrokerURL(), "error", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		t.logger.Info("reconnecting", "broker", t.cfg.BrokerURL())
	})

	client := t.newClient(opts)

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	t.logger.Debug("connecting", "broker", t.cfg.BrokerURL(), "client_id", opts.ClientID)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("connect to %s: %w", t.cfg.BrokerURL(), err)
	}
	return nil
}

// onConnect runs after every successful (re)connect.
func (t *Transport) onConnect(client mqtt.Client) {
	t.logger.Info("connected", "broker", t.cfg.BrokerURL())

	t.mu.Lock()
	topics := slices.Clone(t.topics)
	t.mu.Unlock()

	for _, topic := range topics {
		tok := client.Subscribe(topic, t.qos, nil)
		if err := wait(context.Background(), tok); err != nil {
			t.logger.Error("resubscribe failed", "topic", topic, "error", err)
			continue
		}
		t.logger.Debug("subscribed", "topic", topic)
	}
}

// Subscribe remembers topic and subscribes to it now if connected.
// While disconnected the subscription is deferred to the next connect.
// A topic the broker rejects is forgotten.
func (t *Transport) Subscribe(ctx context.Context, topic string) error {
	t.mu.Lock()
	client := t.client
	remembered := slices.Contains(t.topics, topic)
	if !remembered {
		t.topics = append(t.topics, topic)
	}
	t.mu.Unlock()

	if client == nil || !client.IsConnected() {
		t.logger.Debug("subscription deferred until connected", "topic", topic)
		return nil
	}

	if err := wait(ctx, client.Subscribe(topic, t.qos, nil)); err != nil {
		if !remembered {
			t.forget(topic)
		}
		return fmt.Errorf("subscribe %q: %w", topic, err)
	}
	t.logger.Debug("subscribed", "topic", topic)
	return nil
}

func (t *Transport) forget(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics = slices.DeleteFunc(t.topics, func(s string) bool { return s == topic })
}

// Publish sends payload to topic.
// It returns mqroute.ErrNotConnected when there is no connection.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return mqroute.ErrNotConnected
	}
	if err := wait(ctx, client.Publish(topic, t.qos, false, payload)); err != nil {
		return fmt.Errorf("publish %q: %w", topic, err)
	}
	return nil
}

func (t *Transport) handleMessage(_ mqtt.Client, m mqtt.Message) {
	t.mu.Lock()
	receiver := t.receiver
	t.mu.Unlock()

	if receiver == nil {
		t.logger.Debug("dropping message without receiver", "topic", m.Topic())
		return
	}
	receiver(m.Topic(), m.Payload())
}

// Topics returns the remembered subscription topics.
func (t *Transport) Topics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.topics)
}

// IsConnected reports whether the client currently has a broker connection.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	return client != nil && client.IsConnected()
}

// Disconnect closes the connection. Remembered topics are kept for a later
// Connect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return
	}
	client.Disconnect(uint(t.quiesce / time.Millisecond))
	t.logger.Info("disconnected", "broker", t.cfg.BrokerURL())
}

// wait blocks until tok completes or ctx is done.
func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
