package mqroute

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Router dispatches inbound messages to the handlers of every route whose
// pattern matches the topic.
//
// Routes are registered during startup with RegisterRoute. Each distinct
// subscription topic is subscribed on the transport once, no matter how
// many patterns collapse to it. The transport then delivers every message
// to OnMessage, which re-matches the topic against all routes (overlapping
// wildcard subscriptions make a one-to-one mapping impossible) and runs each
// matching handler in its own goroutine.
//
// Registration may happen concurrently with dispatch: the registry is an
// immutable snapshot replaced on every registration, so OnMessage never
// takes a lock.
type Router struct {
	opts           *routerOptions
	transport      Transport
	defaultHandler Handler
	sem            *semaphore.Weighted

	mu       sync.Mutex // serializes registration
	registry atomic.Pointer[registry]

	running inflight
	stats   routerStats
}

// registry is the append-only route table. A published registry is never
// modified.
type registry struct {
	routes        []*Route
	subscriptions map[string][]*Route
	topics        []string // subscription topics in first-seen order
}

func (reg *registry) with(route *Route) *registry {
	topic := route.SubscriptionTopic()

	next := &registry{
		routes:        make([]*Route, len(reg.routes), len(reg.routes)+1),
		subscriptions: make(map[string][]*Route, len(reg.subscriptions)+1),
		topics:        reg.topics,
	}
	copy(next.routes, reg.routes)
	next.routes = append(next.routes, route)

	for k, v := range reg.subscriptions {
		next.subscriptions[k] = v
	}
	existing := reg.subscriptions[topic]
	if existing == nil {
		next.topics = append(append([]string(nil), reg.topics...), topic)
	}
	next.subscriptions[topic] = append(append([]*Route(nil), existing...), route)

	return next
}

// NewRouter creates a router that subscribes and publishes through t.
//
// If t implements Deliverer, the router registers itself as the receiver of
// inbound messages. Otherwise wire the transport's message callback to
// OnMessage yourself.
//
// t may be nil when subscriptions are managed elsewhere; routes are then
// registered without subscribing and Publish returns ErrNoTransport.
//
// Example:
//
//	router := mqroute.NewRouter(transport,
//	    mqroute.WithLogger(logger),
//	    mqroute.WithMiddleware(mqroute.Logging(logger)))
//
//	_, err := router.RegisterRoute(ctx, "devices/{deviceId}/telemetry",
//	    mqroute.Func2(mqroute.Arg[string]("deviceId"), mqroute.Arg[Telemetry]("data"),
//	        func(deviceID string, data Telemetry) error {
//	            return store.Save(deviceID, data)
//	        }))
func NewRouter(t Transport, opts ...Option) *Router {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	r := &Router{
		opts:      o,
		transport: t,
	}
	if o.MaxConcurrentHandlers > 0 {
		r.sem = semaphore.NewWeighted(o.MaxConcurrentHandlers)
	}
	if o.DefaultHandler != nil {
		r.defaultHandler = applyMiddleware(o.DefaultHandler, o.Middleware)
	}
	r.registry.Store(&registry{subscriptions: make(map[string][]*Route)})

	if d, ok := t.(Deliverer); ok {
		d.SetReceiver(r.OnMessage)
	}
	return r
}

// RegisterRoute compiles pattern and binds it to h.
//
// The first time the pattern's subscription topic is seen it is subscribed
// on the transport; a failing subscription is returned and nothing is
// registered. Registering the same pattern and handler twice yields two
// routes that both fire.
//
// Errors from compiling the pattern are *InvalidPatternError values.
func (r *Router) RegisterRoute(ctx context.Context, pattern string, h Handler, opts ...RouteOption) (*Route, error) {
	if h == nil {
		return nil, fmt.Errorf("route %q: nil handler", pattern)
	}

	p, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	route := &Route{pattern: p}
	for _, opt := range opts {
		opt(route)
	}
	route.handler = applyMiddleware(h, r.opts.Middleware)
	topic := p.SubscriptionTopic()

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.registry.Load()
	if _, subscribed := current.subscriptions[topic]; !subscribed && r.transport != nil {
		r.opts.Logger.Debug("subscribing to topic", "topic", topic)
		if err := r.transport.Subscribe(ctx, topic); err != nil {
			return nil, fmt.Errorf("subscribe %q for route %q: %w", topic, route.Name(), err)
		}
	}

	r.registry.Store(current.with(route))
	r.opts.Logger.Info("route registered",
		"pattern", p.String(),
		"subscription", topic,
		"route", route.Name())

	return route, nil
}

// Handle registers a route using a background context.
func (r *Router) Handle(pattern string, h Handler, opts ...RouteOption) error {
	_, err := r.RegisterRoute(context.Background(), pattern, h, opts...)
	return err
}

// HandleFunc registers a HandlerFunc using a background context.
func (r *Router) HandleFunc(pattern string, fn func(ctx context.Context, msg *Message) error, opts ...RouteOption) error {
	return r.Handle(pattern, HandlerFunc(fn), opts...)
}

// OnMessage is the transport's inbound entry point.
//
// The topic is matched against every registered route and each match is
// handled in a new goroutine, so OnMessage returns without waiting for
// handlers. Handler errors, binding errors and panics are logged and
// suppressed; OnMessage never fails.
func (r *Router) OnMessage(topic string, payload []byte) {
	r.stats.received.Add(1)

	reg := r.registry.Load()
	matched := false

	for _, route := range reg.routes {
		params, ok := route.pattern.Match(topic)
		if !ok {
			continue
		}
		matched = true
		r.dispatch(route.handler, &Message{
			Topic:        topic,
			Payload:      payload,
			Params:       params,
			Route:        route,
			decodeFailed: r.decodeFailed,
		})
	}

	if matched {
		return
	}

	r.stats.unmatched.Add(1)
	if r.defaultHandler == nil {
		r.opts.Logger.Debug("no route matched", "topic", topic)
		return
	}
	r.dispatch(r.defaultHandler, &Message{
		Topic:        topic,
		Payload:      payload,
		Params:       Params{},
		decodeFailed: r.decodeFailed,
	})
}

func (r *Router) dispatch(h Handler, msg *Message) {
	r.stats.dispatched.Add(1)
	r.running.add()

	go func() {
		defer r.running.done()

		if r.sem != nil {
			// Acquire only fails when the context is done.
			_ = r.sem.Acquire(context.Background(), 1)
			defer r.sem.Release(1)
		}

		r.invoke(h, msg)
	}()
}

// invoke runs one handler and absorbs whatever it does wrong.
func (r *Router) invoke(h Handler, msg *Message) {
	defer func() {
		if v := recover(); v != nil {
			r.stats.failures.Add(1)
			r.opts.Logger.Error("handler panicked",
				"route", msg.routeName(),
				"topic", msg.Topic,
				"error", &HandlerPanicError{Route: msg.routeName(), Value: v},
				"stack", string(debug.Stack()))
		}
	}()

	err := h.HandleMessage(context.Background(), msg)
	if err == nil {
		return
	}

	var bindErr *BindingError
	if errors.As(err, &bindErr) {
		r.stats.bindingErrors.Add(1)
		r.opts.Logger.Warn("argument binding failed",
			"route", msg.routeName(),
			"topic", msg.Topic,
			"arg", bindErr.Arg,
			"value", bindErr.Value,
			"type", bindErr.Type,
			"error", bindErr.Err)
		return
	}

	r.stats.failures.Add(1)
	r.opts.Logger.Warn("handler failed",
		"route", msg.routeName(),
		"topic", msg.Topic,
		"error", err)
}

func (r *Router) decodeFailed(err *PayloadDecodeError) {
	r.stats.decodeErrors.Add(1)
	r.opts.Logger.Warn("failed to decode payload",
		"route", err.Route,
		"arg", err.Arg,
		"type", err.Type,
		"error", err.Err)
}

// Wait blocks until no handler is running or ctx is done.
// Use it after the transport stopped delivering to drain in-flight work.
func (r *Router) Wait(ctx context.Context) error {
	return r.running.wait(ctx)
}

// Publish validates topic and publishes payload through the transport.
func (r *Router) Publish(ctx context.Context, topic string, payload []byte) error {
	if r.transport == nil {
		return ErrNoTransport
	}
	if err := validatePublishTopic(topic); err != nil {
		return err
	}
	return r.transport.Publish(ctx, topic, payload)
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*Route {
	reg := r.registry.Load()
	out := make([]*Route, len(reg.routes))
	copy(out, reg.routes)
	return out
}

// Subscriptions returns the distinct subscription topics in the order they
// were first subscribed.
func (r *Router) Subscriptions() []string {
	reg := r.registry.Load()
	out := make([]string, len(reg.topics))
	copy(out, reg.topics)
	return out
}

// GetStats returns the current routing statistics.
func (r *Router) GetStats() RouterStats {
	reg := r.registry.Load()
	return RouterStats{
		MessagesReceived:   r.stats.received.Load(),
		MessagesUnmatched:  r.stats.unmatched.Load(),
		HandlersDispatched: r.stats.dispatched.Load(),
		HandlerFailures:    r.stats.failures.Load(),
		BindingErrors:      r.stats.bindingErrors.Load(),
		DecodeErrors:       r.stats.decodeErrors.Load(),
		Routes:             len(reg.routes),
		Subscriptions:      len(reg.topics),
	}
}
