package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/plantops/plantops-core/internal/infrastructure/logging"
)

// HandlerFunc is the callback signature for routed messages.
//
// Handlers are invoked synchronously from the receive loop, one message at a
// time, so within a subscription they observe arrival order. A returned error
// is logged and the message is dropped; it never stops the loop.
type HandlerFunc func(topic string, payload []byte) error

// route pairs a subscription pattern with its handler.
// Routes are kept in registration order; the first match wins.
type route struct {
	pattern string
	handler HandlerFunc
}

// Router owns the broker connection and dispatches inbound messages to
// pattern handlers.
//
// It runs a single receive loop: each message is matched against the
// registered patterns in order and handed to the first matching handler.
// On connection loss it reconnects with exponential backoff (doubling from
// the initial delay up to the cap), re-subscribes every registered pattern
// and resumes. The loop only exits on context cancellation.
//
// Thread Safety:
//   - Handle, IsConnected and Close are safe for concurrent use.
//   - Run must be called at most once.
type Router struct {
	transport Transport
	log       *logging.Logger

	initialDelay time.Duration
	maxDelay     time.Duration

	mu        sync.RWMutex
	routes    []route
	connected bool
	closed    bool

	closeOnce sync.Once
}

// NewRouter creates a Router over the given transport.
//
// Parameters:
//   - transport: Broker transport (PahoTransport in production)
//   - initialDelay: First reconnect delay; doubles on each failed attempt
//   - maxDelay: Reconnect delay ceiling
//   - log: Structured logger
func NewRouter(transport Transport, initialDelay, maxDelay time.Duration, log *logging.Logger) *Router {
	return &Router{
		transport:    transport,
		log:          log,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// Handle registers a handler for a topic pattern.
//
// Patterns may contain "+" (one segment) and a trailing "#" (one or more
// segments). Registration order matters: the first registered pattern that
// matches an inbound topic receives the message.
//
// Handlers registered before Run are subscribed during the initial connect;
// later registrations subscribe immediately when connected.
func (r *Router) Handle(pattern string, handler HandlerFunc) error {
	if pattern == "" {
		return ErrInvalidTopic
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
	connected := r.connected
	r.mu.Unlock()

	if connected {
		return r.transport.Subscribe(pattern)
	}
	return nil
}

// IsConnected reports the current broker connectivity, for health reporting.
func (r *Router) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// Run connects to the broker, subscribes every registered pattern and
// processes messages until ctx is cancelled.
//
// The initial connection failing is returned as an error; once running,
// connection loss is handled internally and never surfaces to the caller.
//
// Returns:
//   - error: Initial connection or subscription failure, nil on clean shutdown
func (r *Router) Run(ctx context.Context) error {
	if err := r.connect(ctx); err != nil {
		return err
	}
	r.log.Info("broker connected")

	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg := <-r.transport.Messages():
			r.dispatch(msg)

		case err := <-r.transport.Errors():
			r.setConnected(false)
			r.log.Warn("broker connection lost", "error", err)
			if !r.reconnect(ctx) {
				return nil // shutdown requested mid-reconnect
			}
		}
	}
}

// Close disconnects from the broker and marks the router disconnected.
// Idempotent and safe to call even if never connected.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.setConnected(false)
		if err := r.transport.Close(); err != nil {
			r.log.Warn("closing transport", "error", err)
		}
	})
}

// dispatch routes one message to the first matching handler.
//
// Unmatched topics are dropped with a warning. Handler panics are recovered
// and handler errors logged; neither terminates the receive loop.
func (r *Router) dispatch(msg Message) {
	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	for _, rt := range routes {
		if !Match(rt.pattern, msg.Topic) {
			continue
		}
		r.invoke(rt, msg)
		return
	}

	r.log.Warn("no handler for topic", "topic", msg.Topic)
}

// invoke calls a single handler with panic recovery.
func (r *Router) invoke(rt route, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("message handler panic recovered",
				"topic", msg.Topic,
				"pattern", rt.pattern,
				"panic", rec,
			)
		}
	}()

	if err := rt.handler(msg.Topic, msg.Payload); err != nil {
		r.log.Warn("message handler error",
			"topic", msg.Topic,
			"error", err,
		)
	}
}

// connect establishes the broker session and subscribes all registered
// patterns, then marks the router connected.
func (r *Router) connect(ctx context.Context) error {
	if err := r.transport.Connect(ctx); err != nil {
		return err
	}

	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	for _, rt := range routes {
		if err := r.transport.Subscribe(rt.pattern); err != nil {
			return err
		}
	}

	r.setConnected(true)
	return nil
}

// reconnect retries connect with exponential backoff until it succeeds or
// ctx is cancelled. Returns false only on cancellation.
func (r *Router) reconnect(ctx context.Context) bool {
	delay := r.initialDelay

	for {
		r.log.Info("reconnecting to broker", "delay", delay)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := r.connect(ctx); err != nil {
			r.log.Warn("reconnect failed", "error", err)
			delay *= 2
			if delay > r.maxDelay {
				delay = r.maxDelay
			}
			continue
		}

		r.log.Info("broker reconnected")
		return true
	}
}

// setConnected updates the connectivity flag.
func (r *Router) setConnected(v bool) {
	r.mu.Lock()
	r.connected = v
	r.mu.Unlock()
}
