package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nerrad567/printwatch/internal/store"
	"github.com/nerrad567/printwatch/internal/topic"
)

// DefaultBaseTopic is the topic the printer publishes components under.
const DefaultBaseTopic = "printer/components"

// historyTimeout bounds history writes made from the MQTT handler.
const historyTimeout = 5 * time.Second

// sampleComponentID is used to check that the store derives component topics
// from the same base topic as the service.
const sampleComponentID = "sample"

// Publisher sends a message to the broker. Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Telemetry records print progress. Satisfied by *influxdb.Client.
type Telemetry interface {
	WriteComponentProgress(component, status string, currentLayer, totalLayers, progress int)
}

// Logger is the logging surface the service needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps holds the dependencies of a Service.
//
// Store is required. Without a Publisher the service is read-only: commands
// return ErrNoPublisher. History and Telemetry are optional.
type Deps struct {
	Store     *store.MessageStore
	Publisher Publisher
	History   HistoryRepository
	Telemetry Telemetry
	Logger    Logger

	// BaseTopic defaults to DefaultBaseTopic. The store must derive component
	// topics the same way (store.WithComponentTopic).
	BaseTopic string

	// QoS is used for command publishes.
	QoS byte

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service is the printer dashboard's domain logic.
//
// Thread Safety: All methods are safe for concurrent use.
type Service struct {
	store     *store.MessageStore
	publisher Publisher
	history   HistoryRepository
	telemetry Telemetry
	logger    Logger
	base      string
	qos       byte
	now       func() time.Time
}

// NewService creates a Service from deps.
func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("message store is required")
	}

	base := strings.TrimSuffix(deps.BaseTopic, topic.Separator)
	if base == "" {
		base = DefaultBaseTopic
	}
	if !topic.ValidTopic(base) {
		return nil, fmt.Errorf("%w: base topic %q", ErrInvalidTopic, deps.BaseTopic)
	}
	if got, want := deps.Store.ComponentTopic(sampleComponentID), base+topic.Separator+sampleComponentID; got != want {
		return nil, fmt.Errorf("store component topic %q does not match base topic %q", got, base)
	}
	if deps.QoS > 2 {
		return nil, fmt.Errorf("invalid qos %d", deps.QoS)
	}

	s := &Service{
		store:     deps.Store,
		publisher: deps.Publisher,
		history:   deps.History,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		base:      base,
		qos:       deps.QoS,
		now:       deps.Clock,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// BaseTopic returns the topic the components payload is published on.
func (s *Service) BaseTopic() string {
	return s.base
}

// QoS returns the quality of service used for commands.
func (s *Service) QoS() byte {
	return s.qos
}

// SubscriptionFilter returns the filter covering the base topic and every
// component topic.
func (s *Service) SubscriptionFilter() string {
	return s.base + topic.Separator + topic.MultiLevel
}

// ComponentTopic returns the topic a component's state is published on.
func (s *Service) ComponentTopic(componentID string) string {
	return s.base + topic.Separator + componentID
}

// componentID extracts the component ID from a per-component topic.
func (s *Service) componentID(t string) (string, bool) {
	id, ok := strings.CutPrefix(t, s.base+topic.Separator)
	if !ok || id == "" || strings.Contains(id, topic.Separator) {
		return "", false
	}
	return id, true
}

// Components returns the latest known state of every component, keyed by
// component name. Entries that do not decode are skipped.
func (s *Service) Components() ComponentsPayload {
	components := make(ComponentsPayload)
	for _, e := range s.store.GetLatestByWildcardTopic(s.SubscriptionFilter()) {
		if _, ok := s.componentID(e.Topic); !ok {
			continue
		}
		state, err := ParseComponentState(e.Payload)
		if err != nil {
			s.logger.Debug("skipping undecodable component", "topic", e.Topic, "error", err)
			continue
		}
		components[state.ComponentName] = state
	}
	return components
}

// Component returns the latest state of one component.
func (s *Service) Component(componentID string) (ComponentState, error) {
	if err := validateComponentID(componentID); err != nil {
		return ComponentState{}, err
	}

	e, ok := s.store.GetLatestValue(s.ComponentTopic(componentID))
	if !ok {
		return ComponentState{}, fmt.Errorf("%w: %s", ErrUnknownComponent, componentID)
	}
	return ParseComponentState(e.Payload)
}

// HandleMessage records a message received from the broker. It has the
// mqtt.MessageHandler signature.
//
// Every message is stored. Messages on a component topic are also decoded; a
// valid state is written to history and telemetry, an invalid one is
// reported as an error after it has been stored.
func (s *Service) HandleMessage(t string, payload []byte) error {
	s.store.AddIncoming(t, string(payload))

	id, ok := s.componentID(t)
	if !ok {
		return nil
	}

	state, err := ParseComponentState(string(payload))
	if err != nil {
		return fmt.Errorf("component %s: %w", id, err)
	}

	if s.telemetry != nil {
		s.telemetry.WriteComponentProgress(id, string(state.Status),
			state.CurrentLayerNumber, state.TotalLayers, state.Progress())
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	s.recordHistory(ctx, id, string(payload), store.DirectionIncoming)

	return nil
}

// CancelPrint cancels a component that is currently printing.
//
// The full components payload, with the component marked cancelled, is
// published to the base topic where the printer picks it up. The cancelled
// state is only recorded once that publish succeeds, so a failed cancel can
// be retried.
func (s *Service) CancelPrint(ctx context.Context, componentID string) error {
	state, err := s.Component(componentID)
	if err != nil {
		return err
	}
	if state.Status != StatusPrinting {
		return fmt.Errorf("%w: %s is %s", ErrNotPrinting, componentID, state.Status)
	}
	if s.publisher == nil {
		return ErrNoPublisher
	}

	partial := map[string]any{
		"status": StatusCancelled,
		"time":   s.now().Unix(),
	}
	componentTopic, merged, err := s.mergeState(componentID, partial)
	if err != nil {
		return err
	}
	cancelled, err := ParseComponentState(merged)
	if err != nil {
		return fmt.Errorf("component %s: %w", componentID, err)
	}

	components := s.Components()
	components[cancelled.ComponentName] = cancelled
	payload, err := json.Marshal(components)
	if err != nil {
		return fmt.Errorf("encoding components payload: %w", err)
	}
	if err := s.Publish(ctx, s.base, payload, s.qos, false); err != nil {
		return err
	}
	s.commitState(componentID, componentTopic, merged)

	s.logger.Info("print cancelled", "component", componentID, "topic", s.base)
	return nil
}

// UpdateComponent merges partial into a component's state and publishes the
// result on the component topic. The merged state is recorded only after the
// publish succeeds.
//
// Known fields are checked before anything changes: status must be a valid
// PrintStatus and layer counts non-negative integers.
func (s *Service) UpdateComponent(ctx context.Context, componentID string, partial map[string]any) error {
	if err := validateComponentID(componentID); err != nil {
		return err
	}
	if err := validatePartial(partial); err != nil {
		return err
	}
	if s.publisher == nil {
		return ErrNoPublisher
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	componentTopic, merged, err := s.mergeState(componentID, partial)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(componentTopic, []byte(merged), s.qos, false); err != nil {
		return fmt.Errorf("publishing %s: %w", componentTopic, err)
	}
	s.commitState(componentID, componentTopic, merged)

	s.logger.Info("component updated", "component", componentID, "fields", len(partial))
	return nil
}

// mergeState computes a component's merged state without recording it.
func (s *Service) mergeState(componentID string, partial map[string]any) (string, string, error) {
	componentTopic, merged, err := s.store.MergeComponentState(componentID, partial)
	if err != nil {
		if errors.Is(err, store.ErrNoEntry) {
			return "", "", fmt.Errorf("%w: %s", ErrUnknownComponent, componentID)
		}
		return "", "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return componentTopic, merged, nil
}

// commitState records a published component state as outgoing and in history.
func (s *Service) commitState(componentID, componentTopic, merged string) {
	s.store.AddOutgoing(componentTopic, merged)

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	s.recordHistory(ctx, componentID, merged, store.DirectionOutgoing)
}

// Publish sends payload to the broker and records it as outgoing.
func (s *Service) Publish(ctx context.Context, t string, payload []byte, qos byte, retained bool) error {
	if !topic.ValidTopic(t) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, t)
	}
	if s.publisher == nil {
		return ErrNoPublisher
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.publisher.Publish(t, payload, qos, retained); err != nil {
		return fmt.Errorf("publishing %s: %w", t, err)
	}

	s.store.AddOutgoing(t, string(payload))
	return nil
}

// History returns recorded states of a component, newest first.
func (s *Service) History(ctx context.Context, componentID string, limit int) ([]HistoryEntry, error) {
	if err := validateComponentID(componentID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.history.List(ctx, componentID, limit)
}

func (s *Service) recordHistory(ctx context.Context, componentID, payload string, dir store.Direction) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, componentID, payload, dir); err != nil {
		s.logger.Warn("failed to record component history", "component", componentID, "error", err)
	}
}

// validateComponentID rejects IDs that cannot be a single topic level.
func validateComponentID(id string) error {
	if id == "" || strings.Contains(id, topic.Separator) || !topic.ValidTopic(id) {
		return fmt.Errorf("%w: %q", ErrInvalidComponentID, id)
	}
	return nil
}

// validatePartial checks the component fields the dashboard interprets.
func validatePartial(partial map[string]any) error {
	if len(partial) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrInvalidState)
	}

	for key, value := range partial {
		switch key {
		case "status":
			status, ok := statusValue(value)
			if !ok || !status.Valid() {
				return fmt.Errorf("%w: unknown status %v", ErrInvalidState, value)
			}
		case "component_name":
			if name, ok := value.(string); !ok || name == "" {
				return fmt.Errorf("%w: component_name must be a non-empty string", ErrInvalidState)
			}
		case "total_layers", "current_layer_number":
			if n, ok := intValue(value); !ok || n < 0 {
				return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidState, key)
			}
		}
	}
	return nil
}

func statusValue(v any) (PrintStatus, bool) {
	switch s := v.(type) {
	case PrintStatus:
		return s, true
	case string:
		return PrintStatus(s), true
	default:
		return "", false
	}
}

// intValue accepts the integer forms produced by Go callers and by
// encoding/json (float64 with no fraction).
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
