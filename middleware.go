package mqroute

import (
	"context"
	"log/slog"
	"time"
)

// Middleware is a function that wraps a Handler.
// It allows cross-cutting concerns like logging, metrics, or tracing
// to be applied to every route.
//
// Example (Timing):
//
//	func Timing(next mqroute.Handler) mqroute.Handler {
//	    return mqroute.HandlerFunc(func(ctx context.Context, msg *mqroute.Message) error {
//	        start := time.Now()
//	        err := next.HandleMessage(ctx, msg)
//	        log.Printf("%s handled in %v", msg.Topic, time.Since(start))
//	        return err
//	    })
//	}
type Middleware func(Handler) Handler

// applyMiddleware wraps a Handler with multiple middlewares. The first
// middleware in the list is the outermost one.
func applyMiddleware(handler Handler, middleware []Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// Logging returns a Middleware that logs every invocation at debug level
// together with its duration and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, msg *Message) error {
			start := time.Now()
			err := next.HandleMessage(ctx, msg)
			logger.Debug("route handled",
				"route", msg.routeName(),
				"topic", msg.Topic,
				"size", len(msg.Payload),
				"duration", time.Since(start),
				"error", err)
			return err
		})
	}
}
