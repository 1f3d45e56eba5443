package api

import (
	"context"

	"github.com/nerrad567/printwatch/internal/infrastructure/logging"
	"github.com/nerrad567/printwatch/internal/printer"
	"github.com/nerrad567/printwatch/internal/store"
)

// relay forwards store changes to WebSocket clients.
//
// Store callbacks only signal a buffered channel, so a slow hub never holds
// up message handling. Run then sends every entry stamped after the last one
// it forwarded, plus the current components payload.
type relay struct {
	store   *store.MessageStore
	service *printer.Service
	hub     *Hub
	logger  *logging.Logger

	changed   chan struct{}
	watermark int64
}

func newRelay(st *store.MessageStore, service *printer.Service, hub *Hub, logger *logging.Logger) *relay {
	return &relay{
		store:   st,
		service: service,
		hub:     hub,
		logger:  logger,
		changed: make(chan struct{}, 1),
	}
}

// attach records the current watermark and subscribes to the store. Entries
// already in the store are not forwarded. It returns the unsubscribe func.
func (r *relay) attach() func() {
	r.watermark = r.store.LastStamp()
	return r.store.Subscribe(r.signal)
}

// Run forwards store changes until ctx is cancelled, then calls detach.
func (r *relay) Run(ctx context.Context, detach func()) {
	defer detach()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.changed:
			r.flush()
		}
	}
}

// signal records that the store changed. Signals coalesce.
func (r *relay) signal() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// flush broadcasts entries newer than the watermark, oldest first, and
// advances the watermark to the newest one sent.
func (r *relay) flush() {
	entries := r.store.EntriesSince(r.watermark)
	for _, e := range entries {
		r.hub.BroadcastEntry(e)
		r.watermark = max(r.watermark, e.Timestamp)
	}

	// Clears change the components view without adding entries.
	r.hub.Broadcast(WSChannelComponents, r.service.Components())
	r.logger.Debug("store change relayed", "entries", len(entries), "clients", r.hub.ClientCount())
}
