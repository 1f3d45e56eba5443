package store

// Direction records whether a message came from the broker or was sent to it.
type Direction string

// Message directions.
const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Entry is an immutable record of the latest message seen on a topic.
type Entry struct {
	// Timestamp is the Unix time in milliseconds at which the entry was recorded.
	Timestamp int64 `json:"timestamp"`

	// Topic is the exact topic the message was received or published on.
	Topic string `json:"topic"`

	// Payload is the raw message body. It is usually JSON but the store treats
	// it as opaque except in UpdateComponentState.
	Payload string `json:"payload"`

	// Direction tells which cache the entry belongs to.
	Direction Direction `json:"direction"`
}

// snapshot is the persisted form of the store.
type snapshot struct {
	Incoming []Entry `json:"incoming"`
	Outgoing []Entry `json:"outgoing"`
}
