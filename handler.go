package mqroute

import "context"

// Handler processes messages delivered to a route.
//
// A handler runs in its own goroutine. Returned errors and panics are
// logged by the router and never reach the transport. The Message, and its
// Payload in particular, is shared by every handler matched by the same
// delivery and must not be modified.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

// HandleMessage calls f(ctx, msg).
func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Message is the dispatch context for one route match.
type Message struct {
	// Topic the message was published to
	Topic string

	// Raw message payload
	Payload []byte

	// Parameters captured by the route pattern
	Params Params

	// Route that matched the topic
	Route *Route

	decodeFailed func(*PayloadDecodeError)
}

func (m *Message) reportDecodeError(err *PayloadDecodeError) {
	if m.decodeFailed != nil {
		m.decodeFailed(err)
	}
}

func (m *Message) routeName() string {
	if m.Route == nil {
		return ""
	}
	return m.Route.Name()
}

// Route binds a compiled pattern to a handler. Routes are created by
// Router.RegisterRoute and never change afterwards.
type Route struct {
	pattern *Pattern
	handler Handler
	name    string
}

// Pattern returns the compiled pattern of the route.
func (r *Route) Pattern() *Pattern {
	return r.pattern
}

// Name returns the name given with WithRouteName, or the pattern text.
func (r *Route) Name() string {
	if r.name != "" {
		return r.name
	}
	return r.pattern.String()
}

// SubscriptionTopic returns the topic filter the route is subscribed under.
func (r *Route) SubscriptionTopic() string {
	return r.pattern.SubscriptionTopic()
}

// RouteOption configures a single route.
type RouteOption func(*Route)

// WithRouteName sets a human readable name used in logs, e.g. the name of
// the function handling the route.
func WithRouteName(name string) RouteOption {
	return func(r *Route) {
		r.name = name
	}
}
