// Package mqroute routes MQTT messages to handlers by topic pattern.
//
// Handlers are registered against patterns that extend MQTT topic filters
// with named parameters. The router derives the subscription topic for each
// pattern, subscribes once per distinct topic, and dispatches every inbound
// message to all routes whose pattern matches, binding captured parameters,
// the raw topic, the raw payload or the JSON-decoded payload to handler
// arguments.
//
// # Quick Start
//
//	transport := pahomqtt.New(pahomqtt.Config{Host: "localhost", Port: 1883})
//	router := mqroute.NewRouter(transport, mqroute.WithLogger(logger))
//
//	if err := transport.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	router.Handle("station/+/sensor/{sensorId}/telemetry",
//	    mqroute.Func2(mqroute.Arg[string]("sensorId"), mqroute.Arg[SensorTelemetry]("data"),
//	        func(sensorID string, data SensorTelemetry) error {
//	            fmt.Printf("%s: %.1fC\n", sensorID, data.Temperature)
//	            return nil
//	        }))
//
// # Pattern Syntax
//
// Patterns are '/'-separated, like MQTT topics:
//
//   - '+' matches a single level (e.g., "sensors/+/temperature")
//   - '#' matches the remaining levels, including none, and must be last
//     (e.g., "sensors/#" matches "sensors" and "sensors/a/b")
//   - '{name}' matches a single level and captures it as parameter name
//     (e.g., "devices/{deviceId}/telemetry")
//   - any other level matches verbatim
//
// Parameters subscribe as '+', so "a/{x}/c" and "a/+/c" share the
// subscription "a/+/c". Both routes still fire for "a/b/c": the router
// matches every message against every pattern.
//
// Compile, Pattern.Match and Pattern.SubscriptionTopic are usable on their
// own:
//
//	p := mqroute.MustCompile("a/{id}/c")
//	params, ok := p.Match("a/42/c") // params["id"] == "42", ok == true
//
// # Argument Binding
//
// Handlers are plain functions adapted with Func0 to Func4. Each argument is
// declared with Arg, whose name and type decide the value source:
//
//	mqroute.Func3(
//	    mqroute.Arg[int]("floor"),     // route parameter {floor}, parsed as int
//	    mqroute.TopicArg,              // raw topic
//	    mqroute.Arg[Reading]("data"),  // payload decoded as JSON
//	    func(floor int, topic string, data Reading) error { ... })
//
// A route parameter that does not convert (e.g. "abc" for an int) aborts that
// invocation with a *BindingError. A payload that does not decode binds the
// zero value and is reported as a *PayloadDecodeError; the handler still
// runs.
//
// Handlers needing full control implement Handler, or use HandlerFunc, and
// read Message.Topic, Message.Payload and Message.Params directly.
//
// # Error Handling
//
// Invalid patterns fail registration with an *InvalidPatternError
// (errors.Is(err, mqroute.ErrInvalidPattern)). Everything that goes wrong
// while handling a message (binding errors, handler errors, panics) is
// logged and suppressed, so one handler never affects another or the
// transport's receive loop. Nothing is retried; redelivery is up to the
// broker. Counters are available from Router.GetStats.
//
// # Concurrency
//
// OnMessage matches synchronously and starts one goroutine per matching
// route. No ordering is guaranteed between handlers of the same message or
// across messages. WithMaxConcurrentHandlers bounds how many handlers run at
// once without ever blocking OnMessage. Router.Wait drains in-flight
// handlers on shutdown.
//
// # Transports
//
// The router talks to the broker through the Transport interface. The
// transport/pahomqtt package adapts the Eclipse Paho MQTT client and
// transport/loopback provides an in-process transport for tests and local
// wiring.
package mqroute
