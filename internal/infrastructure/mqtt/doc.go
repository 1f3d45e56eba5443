// Package mqtt provides the dashboard's MQTT broker connection.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - The component feed, subscribed again after every reconnect
//   - Message and publish counters reported by Stats
//   - Last Will and Testament (LWT) for dashboard presence
//   - Connection health monitoring
//
// # Architecture
//
// The printer publishes component state on printer/components/<name> and
// listens for commands on printer/components. printwatch subscribes to
// printer/components/#, feeds every message into the message store, and
// publishes cancel commands back to the base topic.
//
//	Printer ↔ MQTT Broker ↔ printwatch ↔ Browser (REST/WebSocket)
//
// # Security Considerations
//
//   - Use TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Credentials are validated against the broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.Printer.BaseTopic)
//	err = client.Follow(mqtt.Feed{Filter: topics.ComponentsWildcard(), QoS: 1, Handler: svc.HandleMessage})
//
//	client.Publish(topics.Components(), payload, 1, false)
package mqtt
