package mqroute

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"time"
)

// Arg declares a handler argument. The name selects the value source and T
// is the Go type the value is bound to:
//
//	mqroute.Func2(
//	    mqroute.Arg[string]("sensorId"),        // route parameter {sensorId}
//	    mqroute.Arg[SensorTelemetry]("data"),   // JSON payload
//	    handleTelemetry)
//
// Sources are tried in this order:
//  1. a route parameter with the same name, converted to T
//  2. the raw topic, for Arg[string]("topic")
//  3. the raw payload, for Arg[string]("payload") or Arg[[]byte]("payload")
//  4. an inert context.Background(), for Arg[context.Context]
//  5. the payload decoded as JSON into T (field names match case-insensitively)
//
// Route parameters convert to string, []byte, bool, signed and unsigned
// integers, float32, float64 and time.Duration. Any other T bound to a
// route parameter, and any conversion failure, is a *BindingError that
// aborts the invocation. A payload that does not decode into T is reported
// as a *PayloadDecodeError and the zero value of T is bound instead.
type Arg[T any] string

// Common argument declarations.
var (
	TopicArg      = Arg[string]("topic")
	PayloadArg    = Arg[string]("payload")
	RawPayloadArg = Arg[[]byte]("payload")
	ContextArg    = Arg[context.Context]("ctx")
)

// Name returns the argument name.
func (a Arg[T]) Name() string {
	return string(a)
}

// Bind resolves the argument against msg. It is what the FuncN adapters
// call; custom Handler implementations can use it directly.
func (a Arg[T]) Bind(msg *Message) (T, error) {
	var out T
	name := string(a)

	if raw, ok := msg.Params[name]; ok {
		if err := convertParam(raw, &out); err != nil {
			var zero T
			return zero, &BindingError{
				Route: msg.routeName(),
				Arg:   name,
				Value: raw,
				Type:  typeName[T](),
				Err:   err,
			}
		}
		return out, nil
	}

	switch p := any(&out).(type) {
	case *string:
		switch name {
		case "topic":
			*p = msg.Topic
			return out, nil
		case "payload":
			*p = string(msg.Payload)
			return out, nil
		}
	case *[]byte:
		if name == "payload" {
			*p = msg.Payload
			return out, nil
		}
	case *context.Context:
		*p = context.Background()
		return out, nil
	}

	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		msg.reportDecodeError(&PayloadDecodeError{
			Route: msg.routeName(),
			Arg:   name,
			Type:  typeName[T](),
			Err:   err,
		})
		var zero T
		return zero, nil
	}
	return out, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// convertParam converts a captured topic level into the value dst points to.
func convertParam(raw string, dst any) error {
	var err error
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *[]byte:
		*p = []byte(raw)
	case *bool:
		*p, err = strconv.ParseBool(raw)
	case *int:
		var v int64
		v, err = strconv.ParseInt(raw, 10, strconv.IntSize)
		*p = int(v)
	case *int8:
		var v int64
		v, err = strconv.ParseInt(raw, 10, 8)
		*p = int8(v)
	case *int16:
		var v int64
		v, err = strconv.ParseInt(raw, 10, 16)
		*p = int16(v)
	case *int32:
		var v int64
		v, err = strconv.ParseInt(raw, 10, 32)
		*p = int32(v)
	case *int64:
		*p, err = strconv.ParseInt(raw, 10, 64)
	case *uint:
		var v uint64
		v, err = strconv.ParseUint(raw, 10, strconv.IntSize)
		*p = uint(v)
	case *uint8:
		var v uint64
		v, err = strconv.ParseUint(raw, 10, 8)
		*p = uint8(v)
	case *uint16:
		var v uint64
		v, err = strconv.ParseUint(raw, 10, 16)
		*p = uint16(v)
	case *uint32:
		var v uint64
		v, err = strconv.ParseUint(raw, 10, 32)
		*p = uint32(v)
	case *uint64:
		*p, err = strconv.ParseUint(raw, 10, 64)
	case *float32:
		var v float64
		v, err = strconv.ParseFloat(raw, 32)
		*p = float32(v)
	case *float64:
		*p, err = strconv.ParseFloat(raw, 64)
	case *time.Duration:
		*p, err = time.ParseDuration(raw)
	default:
		return ErrUnsupportedType
	}
	return err
}

// Func0 adapts a function without arguments.
func Func0(fn func() error) Handler {
	return HandlerFunc(func(_ context.Context, _ *Message) error {
		return fn()
	})
}

// Func1 adapts a function taking one bound argument.
func Func1[A any](a Arg[A], fn func(A) error) Handler {
	return HandlerFunc(func(_ context.Context, msg *Message) error {
		av, err := a.Bind(msg)
		if err != nil {
			return err
		}
		return fn(av)
	})
}

// Func2 adapts a function taking two bound arguments.
func Func2[A, B any](a Arg[A], b Arg[B], fn func(A, B) error) Handler {
	return HandlerFunc(func(_ context.Context, msg *Message) error {
		av, err := a.Bind(msg)
		if err != nil {
			return err
		}
		bv, err := b.Bind(msg)
		if err != nil {
			return err
		}
		return fn(av, bv)
	})
}

// Func3 adapts a function taking three bound arguments.
func Func3[A, B, C any](a Arg[A], b Arg[B], c Arg[C], fn func(A, B, C) error) Handler {
	return HandlerFunc(func(_ context.Context, msg *Message) error {
		av, err := a.Bind(msg)
		if err != nil {
			return err
		}
		bv, err := b.Bind(msg)
		if err != nil {
			return err
		}
		cv, err := c.Bind(msg)
		if err != nil {
			return err
		}
		return fn(av, bv, cv)
	})
}

// Func4 adapts a function taking four bound arguments.
func Func4[A, B, C, D any](a Arg[A], b Arg[B], c Arg[C], d Arg[D], fn func(A, B, C, D) error) Handler {
	return HandlerFunc(func(_ context.Context, msg *Message) error {
		av, err := a.Bind(msg)
		if err != nil {
			return err
		}
		bv, err := b.Bind(msg)
		if err != nil {
			return err
		}
		cv, err := c.Bind(msg)
		if err != nil {
			return err
		}
		dv, err := d.Bind(msg)
		if err != nil {
			return err
		}
		return fn(av, bv, cv, dv)
	})
}
