package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/printwatch/internal/infrastructure/config"
)

// Logger is the logging surface the client needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler receives a message delivered on the feed. A returned error
// is logged and counted; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Client is the dashboard's broker connection.
//
// It follows one feed (normally printer/components/#), publishes commands and
// announces the dashboard on printwatch/dashboard/<client_id>/status. The feed
// is subscribed again on every reconnect.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	feedMu sync.RWMutex
	feed   *Feed

	connected atomic.Bool
	stats     counters
}

// counters backs Stats.
type counters struct {
	received      atomic.Uint64
	handlerErrors atomic.Uint64
	published     atomic.Uint64
	publishErrors atomic.Uint64
	connects      atomic.Uint64
	lastMessage   atomic.Int64 // Unix ms, 0 before the first message
}

// Stats is a snapshot of the connection and its traffic.
type Stats struct {
	Connected     bool      `json:"connected"`
	Broker        string    `json:"broker"`
	Filter        string    `json:"filter,omitempty"`
	Received      uint64    `json:"received"`
	HandlerErrors uint64    `json:"handler_errors"`
	Published     uint64    `json:"published"`
	PublishErrors uint64    `json:"publish_errors"`
	Reconnects    uint64    `json:"reconnects"`
	LastMessage   time.Time `json:"last_message,omitzero"`
}

// Connect establishes a connection to the broker.
//
// The will message marks the dashboard offline if it drops without Close.
// A nil logger discards log output.
//
// Returns:
//   - *Client: Connected client ready for Follow and Publish
//   - error: ErrConnectionFailed if the broker is not reachable in time
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := newClient(cfg, logger)

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logger.Warn("MQTT reconnecting", "broker", brokerURL(cfg))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark the client usable now.
	c.connected.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig, logger Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{cfg: cfg, logger: logger}
}

// handleConnect runs on the initial connection and on every reconnect.
func (c *Client) handleConnect() {
	c.connected.Store(true)
	if c.stats.connects.Add(1) > 1 {
		c.logger.Info("MQTT reconnected", "broker", brokerURL(c.cfg))
	}

	c.publishPresence(statusOnline, "")
	c.subscribeFeed()
}

func (c *Client) handleConnectionLost(err error) {
	c.connected.Store(false)
	c.logger.Warn("MQTT connection lost", "broker", brokerURL(c.cfg), "error", err)
}

// publishPresence publishes the dashboard's retained status without waiting.
func (c *Client) publishPresence(status, reason string) pahomqtt.Token {
	clientID := c.cfg.Broker.ClientID
	payload := buildStatusPayload(clientID, status, reason)
	return c.client.Publish(Topics{}.DashboardStatus(clientID), c.qos(), true, payload)
}

// Close announces a graceful shutdown and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishPresence(statusOffline, reasonGraceful).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// Stats returns a snapshot of the connection and its message counters.
func (c *Client) Stats() Stats {
	s := Stats{
		Connected:     c.IsConnected(),
		Broker:        brokerURL(c.cfg),
		Received:      c.stats.received.Load(),
		HandlerErrors: c.stats.handlerErrors.Load(),
		Published:     c.stats.published.Load(),
		PublishErrors: c.stats.publishErrors.Load(),
		Reconnects:    max(c.stats.connects.Load(), 1) - 1,
	}
	if ms := c.stats.lastMessage.Load(); ms > 0 {
		s.LastMessage = time.UnixMilli(ms).UTC()
	}
	if feed := c.currentFeed(); feed != nil {
		s.Filter = feed.Filter
	}
	return s
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) // #nosec G115 -- validated 0..2
}
