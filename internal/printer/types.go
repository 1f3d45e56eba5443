package printer

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// PrintStatus is the lifecycle state of a printed component.
type PrintStatus string

// Print statuses reported by the printer.
const (
	StatusPrinting  PrintStatus = "printing"
	StatusCompleted PrintStatus = "completed"
	StatusCancelled PrintStatus = "cancelled"
	StatusFailed    PrintStatus = "failed"
)

// Valid reports whether s is a known status.
func (s PrintStatus) Valid() bool {
	switch s {
	case StatusPrinting, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// ComponentState is the state of one printed component as reported on
// <base>/<component>.
type ComponentState struct {
	ComponentName      string      `json:"component_name"`
	TotalLayers        int         `json:"total_layers"`
	CurrentLayerNumber int         `json:"current_layer_number"`
	Status             PrintStatus `json:"status"`

	// Time is the epoch second of the last update.
	Time int64 `json:"time"`

	// StartTime is the epoch second the print started.
	StartTime int64 `json:"start_time"`
}

// Progress returns the completed percentage, rounded down.
// It is 0 when the layer count is unknown.
func (c ComponentState) Progress() int {
	if c.TotalLayers <= 0 {
		return 0
	}
	return c.CurrentLayerNumber * 100 / c.TotalLayers
}

// Validate checks the fields a dashboard relies on.
func (c ComponentState) Validate() error {
	if c.ComponentName == "" {
		return fmt.Errorf("%w: component_name is required", ErrInvalidState)
	}
	if c.TotalLayers < 0 || c.CurrentLayerNumber < 0 {
		return fmt.Errorf("%w: layer counts must not be negative", ErrInvalidState)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidState, c.Status)
	}
	return nil
}

// ComponentsPayload maps component names to their state. It is the body
// published on the base topic.
type ComponentsPayload map[string]ComponentState

// ParseComponentState decodes and validates a component payload.
func ParseComponentState(payload string) (ComponentState, error) {
	if !gjson.Valid(payload) || !gjson.Parse(payload).IsObject() {
		return ComponentState{}, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidState)
	}

	var state ComponentState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return ComponentState{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := state.Validate(); err != nil {
		return ComponentState{}, err
	}
	return state, nil
}
