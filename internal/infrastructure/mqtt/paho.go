package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/plantops/plantops-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultSubscribeTimeout is the maximum time to wait for subscribe acknowledgment.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// inboundBuffer is the capacity of the inbound message channel. The
	// receive loop drains it continuously; the buffer only absorbs bursts.
	inboundBuffer = 256

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// PahoTransport implements Transport over paho.mqtt.golang.
//
// Paho's own auto-reconnect is disabled: the Router owns reconnection so the
// backoff policy and re-subscription order live in one place. Connection loss
// is surfaced on Errors() and the Router calls Connect again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type PahoTransport struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	msgs chan Message
	errs chan error
}

// NewPahoTransport creates a transport for the configured broker.
// No connection is attempted until Connect is called.
func NewPahoTransport(cfg config.MQTTConfig) *PahoTransport {
	t := &PahoTransport{
		cfg:  cfg,
		msgs: make(chan Message, inboundBuffer),
		errs: make(chan error, 1),
	}

	opts := buildClientOptions(cfg)

	// Every inbound publish funnels through the default handler into the
	// message channel. OrderMatters (paho's default) keeps per-subscription
	// arrival order intact.
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.msgs <- Message{Topic: msg.Topic(), Payload: msg.Payload()}
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		select {
		case t.errs <- err:
		default:
			// A loss notification is already pending; one is enough.
		}
	})

	t.client = pahomqtt.NewClient(opts)
	return t
}

// Connect establishes a session with the broker.
// Safe to call again after a connection loss.
func (t *PahoTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	token := t.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Subscribe registers a topic filter with the broker. Messages for the filter
// are delivered through Messages() via the default publish handler.
func (t *PahoTransport) Subscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if !t.client.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Subscribe(pattern, byte(t.cfg.QoS), nil)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Messages returns the inbound message channel.
func (t *PahoTransport) Messages() <-chan Message {
	return t.msgs
}

// Errors returns the connection loss channel.
func (t *PahoTransport) Errors() <-chan error {
	return t.errs
}

// Close disconnects from the broker with a quiesce period for in-flight
// operations. Safe to call when already disconnected.
func (t *PahoTransport) Close() error {
	t.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// buildClientOptions creates paho MQTT options from PlantOps config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Clean session mode
//   - TLS configuration (if enabled)
//
// Auto-reconnect and connect-retry are deliberately off; see PahoTransport.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
