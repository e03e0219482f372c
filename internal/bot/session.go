package bot

import (
	"time"

	"rashody/internal/cache"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingMonth
)

func (s State) String() string {
	switch s {
	case StateAwaitingMonth:
		return "awaiting_month"
	default:
		return "idle"
	}
}

// Session is the per-chat conversation state passed through the Controller.
type Session struct {
	ChatID    int64
	State     State
	UpdatedAt time.Time
}

// SessionStore keeps sessions between events. Expired or unknown chats start idle.
type SessionStore struct {
	cache *cache.LRUCache[int64, Session]
}

const defaultMaxSessions = 10000

func NewSessionStore(sessions *cache.LRUCache[int64, Session]) *SessionStore {
	return &SessionStore{cache: sessions}
}

// NewDefaultSessionStore creates a store whose sessions expire after ttl of inactivity.
func NewDefaultSessionStore(ttl time.Duration) *SessionStore {
	return NewSessionStore(cache.NewLRUCache[int64, Session](defaultMaxSessions, ttl))
}

func (s *SessionStore) Load(chatID int64) Session {
	if sess, ok := s.cache.Get(chatID); ok {
		return sess
	}
	return Session{ChatID: chatID, State: StateIdle}
}

// Save stores the session. Idle sessions carry no information and are dropped.
func (s *SessionStore) Save(sess Session) {
	if sess.State == StateIdle {
		s.cache.Delete(sess.ChatID)
		return
	}
	s.cache.Set(sess.ChatID, sess)
}

// Cleaner exposes the backing cache for periodic expiry.
func (s *SessionStore) Cleaner() cache.Cleaner {
	return s.cache
}
