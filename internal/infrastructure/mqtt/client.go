package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options configures a broker connection for a single device identity.
//
// Username carries the device ID and Password the credential the broker's
// auth plugin will forward to the hook endpoints: an issued JWT for the
// token hooks, or a raw API key for the legacy ones.
type Options struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string
}

// Client is a publish-only MQTT client for device-side tooling.
//
// All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// Auto-reconnect is enabled so a simulator survives broker restarts; a
// rejected credential (expired JWT, revoked key) surfaces as a connection
// error on the initial attempt.
func Connect(opts Options) (*Client, error) {
	c := &Client{}

	pahoOpts := buildClientOptions(opts)
	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.setConnected(true)
	})
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, _ error) {
		c.setConnected(false)
	})

	c.client = pahomqtt.NewClient(pahoOpts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection; the
	// OnConnectHandler callback runs asynchronously and may not have fired yet.
	c.setConnected(true)

	return c, nil
}

// Close disconnects from the broker, waiting briefly for pending publishes.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

func (c *Client) setConnected(state bool) {
	c.connMu.Lock()
	c.connected = state
	c.connMu.Unlock()
}

// buildClientOptions creates paho MQTT options from connection Options.
func buildClientOptions(opts Options) *pahomqtt.ClientOptions {
	po := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if opts.TLS {
		scheme = "ssl"
	}
	po.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, opts.Host, opts.Port))

	po.SetClientID(opts.ClientID)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	// Clean session - no persistent state on the broker between runs.
	po.SetCleanSession(true)

	po.SetAutoReconnect(true)
	po.SetConnectTimeout(defaultConnectTimeout)
	po.SetKeepAlive(defaultKeepAlive)

	if opts.TLS {
		po.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return po
}
