package ws

import (
	"errors"
	"sync"
	"time"

	"messenger/internal/metrics"
	"messenger/internal/models"
	"messenger/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyActive     = errors.New("nickname already has a live session")
	ErrRecipientNotFound = errors.New("recipient has no live session")
	ErrDeliveryFailed    = errors.New("recipient disconnected during delivery")
)

// Session is one registered client. The registry owns the producer side
// of its inbound queue; the consumer side belongs to the stream.
type Session struct {
	ID        string
	Nickname  string
	CreatedAt time.Time
	tx        *queue.Sender
}

func (s *Session) Live() bool { return !s.tx.Closed() }

func (s *Session) Pending() int { return s.tx.Len() }

// Replay pushes a history message ahead of live traffic that arrived
// while the session was held.
func (s *Session) Replay(m models.Message) error { return s.tx.Replay(m) }

func (s *Session) Release() { s.tx.Release() }

// Hub 管理昵称到在线会话的映射，失效条目在下次 Register 时才清理。
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	held     bool

	beforePush func(nickname string)
}

func NewHub() *Hub { return &Hub{sessions: make(map[string]*Session)} }

// NewHeldHub returns a registry whose new sessions park live traffic
// until Session.Release, so a history replay is seen first.
func NewHeldHub() *Hub {
	h := NewHub()
	h.held = true
	return h
}

// Register admits a new session for nickname. A stale entry is evicted
// and replaced; a live one yields ErrAlreadyActive.
func (h *Hub) Register(nickname string) (*Session, *queue.Receiver, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.sessions[nickname]; ok {
		if cur.Live() {
			return nil, nil, ErrAlreadyActive
		}
		delete(h.sessions, nickname)
		metrics.RegistryEntries.Dec()
		metrics.StaleEvictions.Inc()
		log.Info().Str("nickname", nickname).Str("session_id", cur.ID).Msg("evicted stale session")
	}

	var (
		tx *queue.Sender
		rx *queue.Receiver
	)
	if h.held {
		tx, rx = queue.NewHeld()
	} else {
		tx, rx = queue.New()
	}
	s := &Session{ID: uuid.NewString(), Nickname: nickname, CreatedAt: time.Now(), tx: tx}
	h.sessions[nickname] = s
	metrics.RegistryEntries.Inc()
	return s, rx, nil
}

func (h *Hub) Lookup(nickname string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[nickname]
	return s, ok
}

// Deliver pushes m onto the recipient's queue while holding the shared
// lock, so the entry cannot be evicted between lookup and push.
func (h *Hub) Deliver(m models.Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[m.Recipient]
	if !ok || !s.Live() {
		return ErrRecipientNotFound
	}
	if h.beforePush != nil {
		h.beforePush(m.Recipient)
	}
	if err := s.tx.Send(m); err != nil {
		return ErrDeliveryFailed
	}
	return nil
}

// SetBeforePush installs f to run inside Deliver after the liveness
// check and before the push. It must be set before the hub is shared.
func (h *Hub) SetBeforePush(f func(nickname string)) { h.beforePush = f }

// Online 返回在线会话数量，供 REST 接口复用。
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.sessions {
		if s.Live() {
			n++
		}
	}
	return n
}
