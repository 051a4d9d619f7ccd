package mqroute

import (
	"io"
	"log/slog"
)

// routerOptions holds configuration for the Router.
type routerOptions struct {
	// Logger for routing events (optional, defaults to discarding logs)
	Logger *slog.Logger

	// Middleware applied to every route handler, outermost first
	Middleware []Middleware

	// Handler for messages no route matched (optional)
	DefaultHandler Handler

	// Maximum number of handlers running at the same time.
	// 0 = unbounded (default).
	MaxConcurrentHandlers int64
}

// Option is a functional option for configuring the router.
type Option func(*routerOptions)

// WithLogger sets a custom logger for the router.
// If not provided, the router will use a logger that discards all output.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	router := mqroute.NewRouter(transport, mqroute.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *routerOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMiddleware adds middleware wrapping every route handler.
// Middlewares run in the order they are added.
//
// Middleware is applied when a route is registered, so it must be passed
// to NewRouter.
func WithMiddleware(middleware ...Middleware) Option {
	return func(o *routerOptions) {
		o.Middleware = append(o.Middleware, middleware...)
	}
}

// WithDefaultHandler sets a handler for messages that match no route.
//
// Messages can arrive without a matching route when subscriptions overlap
// with other clients of the same transport. Middleware is applied to the
// default handler as well. Its Message has a nil Route and empty Params.
func WithDefaultHandler(handler Handler) Option {
	return func(o *routerOptions) {
		o.DefaultHandler = handler
	}
}

// WithMaxConcurrentHandlers bounds the number of handlers running at the
// same time. Deliveries never wait for a slot: excess invocations are
// started and block inside their own goroutine until a slot frees up.
// 0 disables the bound (default).
func WithMaxConcurrentHandlers(n int) Option {
	return func(o *routerOptions) {
		if n > 0 {
			o.MaxConcurrentHandlers = int64(n)
		}
	}
}

func defaultOptions() *routerOptions {
	return &routerOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
