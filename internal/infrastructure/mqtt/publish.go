package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing messages at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends a command or state payload to topic and waits for the broker
// to acknowledge it. It satisfies printer.Publisher.
//
// Printers publish component state retained. Dashboard commands, such as the
// components payload that cancels a print, are sent with retained false so a
// printer that reconnects later does not replay them.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrPublishFailed wrapping the broker's answer
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !validPublishTopic(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed); err != nil {
		c.stats.publishErrors.Add(1)
		return err
	}
	c.stats.published.Add(1)
	return nil
}
