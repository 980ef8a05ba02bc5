package mqtt

import "context"

// Message is a single inbound publish delivered by the transport.
type Message struct {
	// Topic is the concrete topic the message arrived on (wildcards expanded).
	Topic string

	// Payload is the raw message body, typically JSON.
	Payload []byte
}

// Transport abstracts the broker connection beneath the Router.
//
// The production implementation wraps paho.mqtt.golang (see paho.go); tests
// substitute an in-memory fake so the receive loop, dispatch and reconnect
// logic can be exercised without a broker.
//
// Contract:
//   - Connect establishes (or re-establishes) the broker session. It must be
//     callable again after a connection loss.
//   - Subscribe registers a topic filter with the broker. Subscriptions do
//     not survive reconnection; the Router re-subscribes after Connect.
//   - Messages delivers inbound publishes in arrival order per subscription.
//   - Errors delivers at most one error per connection loss.
//   - Close tears the session down and is safe to call more than once.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(pattern string) error
	Messages() <-chan Message
	Errors() <-chan error
	Close() error
}
