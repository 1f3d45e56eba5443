package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UpdateComponentState merges partial over the latest JSON object recorded for
// a component and records the result as an outgoing entry.
//
// The component topic comes from WithComponentTopic. The merge is shallow:
// each key of partial replaces the top-level field of the same name and the
// other fields keep their value and order. Nothing is published; sending the
// merged payload is the caller's job.
//
// On failure the store is left untouched, the cause is logged, and one of
// ErrNoEntry, ErrInvalidJSON, ErrNotObject or ErrInvalidField is returned.
func (s *MessageStore) UpdateComponentState(componentID string, partial map[string]any) error {
	s.mu.Lock()
	componentTopic, merged, err := s.mergeLocked(componentID, partial)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.recordLocked(DirectionOutgoing, componentTopic, merged)
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// MergeComponentState returns the component topic and the payload
// UpdateComponentState would record, without recording anything. Callers
// that must send the payload first record it with AddOutgoing once it is
// sent.
func (s *MessageStore) MergeComponentState(componentID string, partial map[string]any) (componentTopic, merged string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(componentID, partial)
}

func (s *MessageStore) mergeLocked(componentID string, partial map[string]any) (string, string, error) {
	componentTopic := s.componentTopic(componentID)

	entry, ok := s.latestLocked(componentTopic)
	if !ok {
		s.logger.Warn("no existing message for component", "component", componentID, "topic", componentTopic)
		return "", "", fmt.Errorf("%w: %s", ErrNoEntry, componentTopic)
	}

	merged, err := mergeObject(entry.Payload, partial)
	if err != nil {
		s.logger.Error("cannot merge component state",
			"component", componentID,
			"topic", componentTopic,
			"error", err,
		)
		return "", "", err
	}
	return componentTopic, merged, nil
}

// ComponentTopic returns the topic UpdateComponentState uses for componentID.
func (s *MessageStore) ComponentTopic(componentID string) string {
	return s.componentTopic(componentID)
}

// mergeObject sets every field of partial on the JSON object in payload.
// New fields are appended in key order.
func mergeObject(payload string, partial map[string]any) (string, error) {
	if !gjson.Valid(payload) {
		return "", ErrInvalidJSON
	}
	if !gjson.Parse(payload).IsObject() {
		return "", ErrNotObject
	}

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := payload
	for _, k := range keys {
		raw, err := json.Marshal(partial[k])
		if err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidField, k, err)
		}

		merged, err = sjson.SetRaw(merged, gjson.Escape(k), string(raw))
		if err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidField, k, err)
		}
	}

	return merged, nil
}
