package pahomqtt

import (
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Default broker ports.
const (
	DefaultPort    = 1883
	DefaultTLSPort = 8883
)

// Config describes the broker connection.
type Config struct {
	Host     string
	Port     int // defaults to DefaultPort, or DefaultTLSPort when UseTLS is set
	Username string
	Password string

	// UseTLS forces TLS on or off. When nil, TLS is used only on port 8883.
	UseTLS *bool

	// TLS is the client TLS configuration. Nil means the system defaults.
	TLS *tls.Config

	// ClientID identifies the session. A random ID is generated when empty.
	ClientID string

	// CleanSession discards the broker-side session on connect.
	CleanSession bool

	KeepAlive      time.Duration // default 30s
	ConnectTimeout time.Duration // default 30s
}

// TLSEnabled reports whether the connection will use TLS.
func (c Config) TLSEnabled() bool {
	if c.UseTLS != nil {
		return *c.UseTLS
	}
	return c.port() == DefaultTLSPort
}

func (c Config) port() int {
	if c.Port > 0 {
		return c.Port
	}
	if c.UseTLS != nil && *c.UseTLS {
		return DefaultTLSPort
	}
	return DefaultPort
}

// BrokerURL returns the URL handed to the Paho client, e.g.
// "tcp://localhost:1883" or "ssl://broker.example.com:8883".
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.TLSEnabled() {
		scheme = "ssl"
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(c.port()))
}

// clientOptions translates the config into Paho client options. Connection
// callbacks are installed by the Transport.
func (c Config) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.BrokerURL()).
		SetClientID(c.clientID()).
		SetCleanSession(c.CleanSession).
		SetAutoReconnect(true).
		SetKeepAlive(durationOr(c.KeepAlive, 30*time.Second)).
		SetConnectTimeout(durationOr(c.ConnectTimeout, 30*time.Second))

	if c.Username != "" {
		opts.SetUsername(c.Username)
		if c.Password != "" {
			opts.SetPassword(c.Password)
		}
	}

	if c.TLSEnabled() {
		cfg := c.TLS
		if cfg == nil {
			cfg = &tls.Config{ServerName: c.Host, MinVersion: tls.VersionTLS12}
		}
		opts.SetTLSConfig(cfg)
	}
	return opts
}

// clientID returns the configured ID or a fresh one that fits in the 23
// characters MQTT 3.1 brokers are required to accept.
func (c Config) clientID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return "mqroute-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
