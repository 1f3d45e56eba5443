package printer

import "errors"

// Domain errors for the printer package.
var (
	// ErrInvalidState is returned when a payload is not a valid component state.
	ErrInvalidState = errors.New("printer: invalid component state")

	// ErrUnknownComponent is returned when no message has been seen for a component.
	ErrUnknownComponent = errors.New("printer: unknown component")

	// ErrNotPrinting is returned when cancelling a component that is not printing.
	ErrNotPrinting = errors.New("printer: component is not printing")

	// ErrInvalidComponentID is returned for an empty component ID or one
	// containing topic separators or wildcards.
	ErrInvalidComponentID = errors.New("printer: invalid component id")

	// ErrInvalidTopic is returned when publishing to an empty or wildcard topic.
	ErrInvalidTopic = errors.New("printer: invalid topic")

	// ErrNoPublisher is returned when a command needs the broker but none is configured.
	ErrNoPublisher = errors.New("printer: no publisher configured")

	// ErrNoHistory is returned by History when no history repository is configured.
	ErrNoHistory = errors.New("printer: history not enabled")
)
