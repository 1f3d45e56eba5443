package mqtt

import (
	"strings"

	"github.com/nerrad567/printwatch/internal/topic"
)

// Topic prefixes.
const (
	// DefaultComponentsTopic is where the printer publishes its components.
	DefaultComponentsTopic = "printer/components"

	// TopicPrefixDashboard is the base for dashboard presence topics.
	TopicPrefixDashboard = "printwatch/dashboard"
)

// Topics provides builders for the printer's MQTT topics.
// Using these helpers keeps the store, the service and the subscriptions on
// the same layout.
//
//	topics := mqtt.NewTopics("printer/components")
//	topics.Component("bracket")
//	// Returns: "printer/components/bracket"
type Topics struct {
	// Base is the aggregate components topic. Empty means DefaultComponentsTopic.
	Base string
}

// NewTopics returns Topics rooted at base, ignoring a trailing separator.
func NewTopics(base string) Topics {
	return Topics{Base: strings.TrimSuffix(base, topic.Separator)}
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultComponentsTopic
	}
	return t.Base
}

// Components returns the aggregate topic carrying every component, keyed by
// name. Cancel commands are published here.
//
// Example: printer/components
func (t Topics) Components() string {
	return t.base()
}

// Component returns the topic for one component's state.
//
// Example: printer/components/bracket
func (t Topics) Component(componentID string) string {
	return t.base() + topic.Separator + componentID
}

// ComponentsWildcard returns a filter matching the aggregate topic and every
// component topic.
//
// Pattern: printer/components/#
func (t Topics) ComponentsWildcard() string {
	return t.base() + topic.Separator + topic.MultiLevel
}

// DashboardStatus returns the retained presence topic for a dashboard client.
//
// Example: printwatch/dashboard/dash-1/status
func (Topics) DashboardStatus(clientID string) string {
	return TopicPrefixDashboard + topic.Separator + clientID + topic.Separator + "status"
}

// AllDashboardStatus returns a filter matching every dashboard's presence.
//
// Pattern: printwatch/dashboard/+/status
func (t Topics) AllDashboardStatus() string {
	return t.DashboardStatus(topic.SingleLevel)
}

// validPublishTopic reports whether name can be published to.
func validPublishTopic(name string) bool {
	return topic.ValidTopic(name)
}

// validSubscribeFilter reports whether name is a well-formed filter.
func validSubscribeFilter(name string) bool {
	return topic.ValidFilter(name)
}
