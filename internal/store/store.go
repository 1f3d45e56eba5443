package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/printwatch/internal/topic"
)

// defaultPersistTimeout bounds each call into BlobStorage.
const defaultPersistTimeout = 5 * time.Second

// Logger is the logging surface the store needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures a MessageStore.
type Option func(*MessageStore)

// WithLogger sets the logger. Without one, log output is discarded.
func WithLogger(logger Logger) Option {
	return func(s *MessageStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now as the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MessageStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStorageKey sets the key the snapshot is stored under.
func WithStorageKey(key string) Option {
	return func(s *MessageStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithComponentTopic sets how UpdateComponentState derives a topic from a
// component ID.
func WithComponentTopic(fn func(componentID string) string) Option {
	return func(s *MessageStore) {
		if fn != nil {
			s.componentTopic = fn
		}
	}
}

// WithPersistTimeout bounds each storage call.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *MessageStore) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// DefaultComponentTopic is the topic scheme used when WithComponentTopic is
// not given: printer/components/{componentID}.
func DefaultComponentTopic(componentID string) string {
	return "printer/components/" + componentID
}

// MessageStore is a latest-value cache of MQTT messages in both directions.
//
// Create it with New, which loads the persisted snapshot, and call Close on
// shutdown to flush a snapshot whose last write failed.
type MessageStore struct {
	mu        sync.Mutex
	incoming  map[string]Entry
	outgoing  map[string]Entry
	lastStamp int64
	dirty     bool

	storage        BlobStorage
	key            string
	persistTimeout time.Duration
	now            func() time.Time
	componentTopic func(string) string
	logger         Logger

	subMu       sync.Mutex
	subscribers map[uint64]func()
	nextSubID   uint64
}

// New creates a MessageStore backed by storage and loads its last snapshot.
//
// A nil storage keeps everything in memory. Load failures are logged and
// leave the store empty; they are never returned.
func New(storage BlobStorage, opts ...Option) *MessageStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}

	s := &MessageStore{
		incoming:       make(map[string]Entry),
		outgoing:       make(map[string]Entry),
		storage:        storage,
		key:            DefaultStorageKey,
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
		componentTopic: DefaultComponentTopic,
		logger:         slog.New(slog.DiscardHandler),
		subscribers:    make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()
	return s
}

// load restores both caches from storage.
func (s *MessageStore) load() {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to load message store, starting empty", "key", s.key, "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warn("failed to decode message store, starting empty", "key", s.key, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range snap.Incoming {
		s.restoreLocked(DirectionIncoming, e)
	}
	for _, e := range snap.Outgoing {
		s.restoreLocked(DirectionOutgoing, e)
	}

	s.logger.Debug("message store loaded",
		"incoming", len(s.incoming),
		"outgoing", len(s.outgoing),
	)
}

// restoreLocked puts a persisted entry back, keeping the newest per topic.
func (s *MessageStore) restoreLocked(dir Direction, e Entry) {
	e.Direction = dir
	cache := s.cacheLocked(dir)
	if existing, ok := cache[e.Topic]; ok && existing.Timestamp > e.Timestamp {
		return
	}
	cache[e.Topic] = e
	if e.Timestamp > s.lastStamp {
		s.lastStamp = e.Timestamp
	}
}

// AddIncoming records a message received from the broker.
func (s *MessageStore) AddIncoming(topic, payload string) {
	s.add(DirectionIncoming, topic, payload)
}

// AddOutgoing records a message published to the broker.
func (s *MessageStore) AddOutgoing(topic, payload string) {
	s.add(DirectionOutgoing, topic, payload)
}

func (s *MessageStore) add(dir Direction, topic, payload string) {
	s.mu.Lock()
	s.recordLocked(dir, topic, payload)
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
}

// recordLocked replaces the entry for topic in the dir cache.
func (s *MessageStore) recordLocked(dir Direction, topic, payload string) Entry {
	e := Entry{
		Timestamp: s.stampLocked(),
		Topic:     topic,
		Payload:   payload,
		Direction: dir,
	}
	s.cacheLocked(dir)[topic] = e
	return e
}

// stampLocked returns the clock in milliseconds, bumped so that every entry
// is strictly newer than the previous one.
func (s *MessageStore) stampLocked() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastStamp {
		ts = s.lastStamp + 1
	}
	s.lastStamp = ts
	return ts
}

func (s *MessageStore) cacheLocked(dir Direction) map[string]Entry {
	if dir == DirectionOutgoing {
		return s.outgoing
	}
	return s.incoming
}

// GetLatestIncoming returns the latest incoming entry for topic.
func (s *MessageStore) GetLatestIncoming(topic string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.incoming[topic]
	return e, ok
}

// GetLatestOutgoing returns the latest outgoing entry for topic.
func (s *MessageStore) GetLatestOutgoing(topic string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outgoing[topic]
	return e, ok
}

// GetLatestValue returns the newer of the incoming and outgoing entries for
// topic. Ties go to the incoming entry.
func (s *MessageStore) GetLatestValue(topic string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestLocked(topic)
}

func (s *MessageStore) latestLocked(topic string) (Entry, bool) {
	in, inOK := s.incoming[topic]
	out, outOK := s.outgoing[topic]

	switch {
	case inOK && outOK:
		if in.Timestamp >= out.Timestamp {
			return in, true
		}
		return out, true
	case inOK:
		return in, true
	case outOK:
		return out, true
	default:
		return Entry{}, false
	}
}

// GetLatestIncomingByWildcardTopic returns the incoming entries whose topic
// matches filter, ordered by topic.
func (s *MessageStore) GetLatestIncomingByWildcardTopic(filter string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return matching(s.incoming, filter)
}

// GetLatestOutgoingByWildcardTopic returns the outgoing entries whose topic
// matches filter, ordered by topic.
func (s *MessageStore) GetLatestOutgoingByWildcardTopic(filter string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return matching(s.outgoing, filter)
}

// GetLatestByWildcardTopic returns, for every topic matching filter, the newer
// of its incoming and outgoing entries. Results are ordered by topic.
func (s *MessageStore) GetLatestByWildcardTopic(filter string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[string]Entry)
	for _, e := range matching(s.incoming, filter) {
		latest[e.Topic] = e
	}
	for _, e := range matching(s.outgoing, filter) {
		if existing, ok := latest[e.Topic]; !ok || e.Timestamp > existing.Timestamp {
			latest[e.Topic] = e
		}
	}

	return sorted(latest)
}

// GetAllLatestIncoming returns every incoming entry, ordered by topic.
func (s *MessageStore) GetAllLatestIncoming() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.incoming)
}

// GetAllLatestOutgoing returns every outgoing entry, ordered by topic.
func (s *MessageStore) GetAllLatestOutgoing() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.outgoing)
}

// EntriesSince returns the entries of both directions stamped after stamp,
// oldest first. Both caches are read under one lock, so an entry can never be
// missed in favour of a newer one from the other direction.
func (s *MessageStore) EntriesSince(stamp int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	for _, cache := range []map[string]Entry{s.incoming, s.outgoing} {
		for _, e := range cache {
			if e.Timestamp > stamp {
				entries = append(entries, e)
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries
}

// LastStamp returns the newest timestamp the store has issued or loaded.
// Clearing entries does not lower it.
func (s *MessageStore) LastStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStamp
}

// ClearIncoming drops all incoming entries.
func (s *MessageStore) ClearIncoming() {
	s.clear(DirectionIncoming)
}

// ClearOutgoing drops all outgoing entries.
func (s *MessageStore) ClearOutgoing() {
	s.clear(DirectionOutgoing)
}

func (s *MessageStore) clear(dir Direction) {
	s.mu.Lock()
	cache := s.cacheLocked(dir)
	changed := len(cache) > 0
	if changed {
		clear(cache)
		s.persistLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// ClearAll drops both caches and removes the persisted snapshot.
//
// The snapshot is removed even when the store is empty, so a blob that failed
// to load is dropped as well. Subscribers are only notified when entries were
// removed.
func (s *MessageStore) ClearAll() {
	s.mu.Lock()
	changed := len(s.incoming) > 0 || len(s.outgoing) > 0
	clear(s.incoming)
	clear(s.outgoing)

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	err := s.storage.Remove(ctx, s.key)
	cancel()
	if err != nil {
		s.logger.Error("failed to remove persisted message store", "key", s.key, "error", err)
	}
	// A blob that could not be removed is stale; let Close overwrite it.
	s.dirty = err != nil
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Len returns the number of incoming and outgoing entries.
func (s *MessageStore) Len() (incoming, outgoing int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.incoming), len(s.outgoing)
}

// Close writes the snapshot again if the last write failed.
func (s *MessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.writeLocked(); err != nil {
		return fmt.Errorf("flushing message store: %w", err)
	}
	s.dirty = false
	return nil
}

// persistLocked writes the snapshot, logging failures instead of returning them.
func (s *MessageStore) persistLocked() {
	if err := s.writeLocked(); err != nil {
		s.logger.Error("failed to persist message store", "key", s.key, "error", err)
		s.dirty = true
		return
	}
	s.dirty = false
}

func (s *MessageStore) writeLocked() error {
	data, err := json.Marshal(snapshot{
		Incoming: sorted(s.incoming),
		Outgoing: sorted(s.outgoing),
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	if err := s.storage.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Subscribe registers callback to run after every change.
//
// The returned function removes the callback. It may be called more than once
// and from inside a callback.
func (s *MessageStore) Subscribe(callback func()) (unsubscribe func()) {
	if callback == nil {
		return func() {}
	}

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = callback
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

// SubscriberCount returns the number of registered callbacks.
func (s *MessageStore) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subscribers)
}

// notify runs every subscriber registered at the time of the call.
func (s *MessageStore) notify() {
	s.subMu.Lock()
	callbacks := make([]func(), 0, len(s.subscribers))
	for _, cb := range s.subscribers {
		callbacks = append(callbacks, cb)
	}
	s.subMu.Unlock()

	for _, cb := range callbacks {
		s.run(cb)
	}
}

// run invokes one subscriber, recovering a panic so the rest still run.
func (s *MessageStore) run(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message store subscriber panic recovered", "panic", r)
		}
	}()
	cb()
}

// matching returns entries of cache whose topic matches filter, ordered by topic.
func matching(cache map[string]Entry, filter string) []Entry {
	result := make([]Entry, 0)
	for t, e := range cache {
		if topic.Matches(filter, t) {
			result = append(result, e)
		}
	}
	sortByTopic(result)
	return result
}

// sorted returns the values of cache ordered by topic.
func sorted(cache map[string]Entry) []Entry {
	result := make([]Entry, 0, len(cache))
	for _, e := range cache {
		result = append(result, e)
	}
	sortByTopic(result)
	return result
}

func sortByTopic(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Topic < entries[j].Topic
	})
}
