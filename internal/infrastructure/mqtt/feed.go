package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Feed is the subscription the dashboard keeps open.
type Feed struct {
	// Filter selects the topics, for example printer/components/#.
	Filter string

	// QoS is the maximum QoS the broker delivers with.
	QoS byte

	// Handler is called for every message, on a paho goroutine.
	Handler MessageHandler
}

func (f Feed) validate() error {
	if !validSubscribeFilter(f.Filter) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, f.Filter)
	}
	if f.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if f.Handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	return nil
}

// Follow subscribes to feed and keeps it subscribed across reconnects.
//
// A second call replaces the previous feed; the old filter is unsubscribed.
// If the broker rejects the subscription the previous feed is kept.
//
// Example:
//
//	err := client.Follow(mqtt.Feed{
//	    Filter:  topics.ComponentsWildcard(),
//	    QoS:     1,
//	    Handler: svc.HandleMessage,
//	})
func (c *Client) Follow(feed Feed) error {
	if err := feed.validate(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(feed.Filter, feed.QoS, c.deliver(feed.Handler))
	if err := wait(token, ErrSubscribeFailed); err != nil {
		return err
	}

	c.feedMu.Lock()
	previous := c.feed
	c.feed = &feed
	c.feedMu.Unlock()

	if previous != nil && previous.Filter != feed.Filter {
		if err := wait(c.client.Unsubscribe(previous.Filter), ErrSubscribeFailed); err != nil {
			c.logger.Warn("failed to drop previous feed", "filter", previous.Filter, "error", err)
		}
	}
	return nil
}

func (c *Client) currentFeed() *Feed {
	c.feedMu.RLock()
	defer c.feedMu.RUnlock()
	return c.feed
}

// subscribeFeed restores the feed after a reconnect. The clean session drops
// subscriptions on the broker, and retained component states are delivered
// again once it is back.
func (c *Client) subscribeFeed() {
	feed := c.currentFeed()
	if feed == nil {
		return
	}

	token := c.client.Subscribe(feed.Filter, feed.QoS, c.deliver(feed.Handler))
	if err := wait(token, ErrSubscribeFailed); err != nil {
		c.logger.Error("failed to restore feed", "filter", feed.Filter, "error", err)
	}
}

// deliver adapts handler to paho, counting messages and recovering panics.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.stats.received.Add(1)
		c.stats.lastMessage.Store(time.Now().UnixMilli())

		defer func() {
			if r := recover(); r != nil {
				c.stats.handlerErrors.Add(1)
				c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.stats.handlerErrors.Add(1)
			c.logger.Warn("MQTT message rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

// wait blocks on token for at most defaultPublishTimeout and wraps a failure
// in sentinel.
func wait(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
