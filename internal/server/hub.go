package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ChangeEvent tells a connected viewer the stored records changed and it
// should refetch whatever it is displaying.
type ChangeEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans a data-change signal out to every connected event-stream client.
// It implements ingest.Notifier so the coordinator can signal it directly
// when ingestion and the HTTP API run in the same process.
type Hub struct {
	log zerolog.Logger

	mu   sync.Mutex
	subs map[chan ChangeEvent]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[chan ChangeEvent]struct{}),
	}
}

// Subscribe registers a new client. The returned cancel func must be called
// when the client disconnects.
func (h *Hub) Subscribe() (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, 4)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// DataChanged implements ingest.Notifier. A subscriber whose buffer is full
// misses the event; the next one reaches it.
func (h *Hub) DataChanged(ctx context.Context) error {
	ev := ChangeEvent{Timestamp: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.log.Debug().Int("subscribers", len(h.subs)).Msg("data change broadcast")
	return nil
}

// Subscribers returns the current client count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
