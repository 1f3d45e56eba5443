package store

import "errors"

// Errors returned by UpdateComponentState.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoEntry is returned when no message has been recorded for the component topic.
	ErrNoEntry = errors.New("store: no entry for topic")

	// ErrInvalidJSON is returned when the latest payload is not valid JSON.
	ErrInvalidJSON = errors.New("store: payload is not valid JSON")

	// ErrNotObject is returned when the latest payload is valid JSON but not an object.
	ErrNotObject = errors.New("store: payload is not a JSON object")

	// ErrInvalidField is returned when a partial state field cannot be encoded.
	ErrInvalidField = errors.New("store: partial state field cannot be encoded")
)
