package mqroute

import (
	"errors"
	"fmt"
)

// Standard errors returned by the router
var (
	// ErrInvalidPattern is returned when a topic pattern cannot be compiled.
	// The concrete error is an *InvalidPatternError carrying the reason.
	ErrInvalidPattern = errors.New("invalid topic pattern")

	// ErrBinding is returned when a route parameter cannot be converted to
	// the type declared by the handler argument.
	ErrBinding = errors.New("argument binding failed")

	// ErrPayloadDecode is reported when a payload cannot be decoded into a
	// structured handler argument. It never aborts an invocation.
	ErrPayloadDecode = errors.New("payload decode failed")

	// ErrUnsupportedType is wrapped by a BindingError when a route parameter
	// is bound to a type outside the supported primitive set.
	ErrUnsupportedType = errors.New("unsupported parameter type")

	// ErrHandlerPanic is matched by HandlerPanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrInvalidTopic is returned by Publish for topics that cannot be
	// published (empty, wildcards, NUL bytes, invalid UTF-8).
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrNoTransport is returned when the router was created without one.
	ErrNoTransport = errors.New("no transport configured")

	// ErrNotConnected is returned by transports asked to publish or
	// subscribe while they have no broker connection.
	ErrNotConnected = errors.New("not connected")
)

// InvalidPatternError describes why a pattern was rejected.
type InvalidPatternError struct {
	Pattern string
	Reason  string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid topic pattern %q: %s", e.Pattern, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidPattern) report true.
func (e *InvalidPatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

// BindingError is raised during dispatch when a route parameter value
// cannot be converted. The invocation for that match is aborted.
type BindingError struct {
	Route string // route pattern
	Arg   string // argument name
	Value string // raw parameter value
	Type  string // declared Go type
	Err   error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("route %q: cannot bind %q=%q to %s: %v", e.Route, e.Arg, e.Value, e.Type, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

func (e *BindingError) Is(target error) bool {
	return target == ErrBinding
}

// PayloadDecodeError is reported when the payload cannot be decoded into a
// structured argument. The argument is bound to its zero value instead.
type PayloadDecodeError struct {
	Route string
	Arg   string
	Type  string
	Err   error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("route %q: cannot decode payload into %s %q: %v", e.Route, e.Type, e.Arg, e.Err)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Err
}

func (e *PayloadDecodeError) Is(target error) bool {
	return target == ErrPayloadDecode
}

// HandlerPanicError wraps a value recovered from a panicking handler.
type HandlerPanicError struct {
	Route string
	Value any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("route %q: handler panicked: %v", e.Route, e.Value)
}

func (e *HandlerPanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
