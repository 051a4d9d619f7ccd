package mqroute

import "context"

// Transport is the broker connection the router subscribes and publishes
// through. Connection management, QoS, TLS and authentication are the
// transport's business.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	// Subscribe asks the broker for messages matching the topic filter.
	Subscribe(ctx context.Context, topic string) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MessageFunc receives inbound messages from a transport.
// Router.OnMessage has this signature.
type MessageFunc func(topic string, payload []byte)

// Deliverer is implemented by transports that push inbound messages to a
// single receiver. NewRouter attaches itself to such transports.
type Deliverer interface {
	SetReceiver(fn MessageFunc)
}
