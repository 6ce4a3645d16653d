package web

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// noticeBacklog bounds how many transient messages are kept for newly
// connected clients.
const noticeBacklog = 20

// Notice is a transient user-facing message with a stable identity so
// clients can show each one exactly once.
type Notice struct {
	ID      uint64    `json:"id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Hub fans state-change signals out to connected clients and collects
// notices from every component. It is the process-wide domain.Notifier.
// Broadcast never blocks: signals are coalesced per subscriber.
type Hub struct {
	log zerolog.Logger

	mu       sync.Mutex
	seq      uint64
	nextSub  uint64
	subs     map[uint64]chan struct{}
	nextID   uint64
	notices  []Notice
}

var _ domain.Notifier = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[uint64]chan struct{}),
	}
}

// Notify records a transient message and signals subscribers.
func (h *Hub) Notify(msg string) {
	h.mu.Lock()
	h.nextID++
	h.notices = append(h.notices, Notice{
		ID:      h.nextID,
		Message: msg,
		At:      time.Now(),
	})
	if len(h.notices) > noticeBacklog {
		h.notices = h.notices[len(h.notices)-noticeBacklog:]
	}
	h.broadcastLocked()
	h.mu.Unlock()

	h.log.Info().Str("notice", msg).Msg("web: notice")
}

// Broadcast signals every subscriber that combined state changed.
func (h *Hub) Broadcast() {
	h.mu.Lock()
	h.broadcastLocked()
	h.mu.Unlock()
}

func (h *Hub) broadcastLocked() {
	h.seq++
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers for change signals. Call the cancel function to
// unsubscribe.
func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan struct{}, 1)
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Seq returns the monotonic broadcast sequence number.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Notices returns a copy of the recent notice backlog.
func (h *Hub) Notices() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Notice, len(h.notices))
	copy(out, h.notices)
	return out
}
