package client

import (
	"sync"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/api"
	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
)

// SessionEventType labels a session change broadcast.
type SessionEventType string

const (
	SessionEventLogin  SessionEventType = "login"
	SessionEventLogout SessionEventType = "logout"
)

// SessionEvent notifies observers that the session changed.
type SessionEvent struct {
	Type SessionEventType
}

// Session is the persisted client-side session: tokens, the absolute
// access-token expiry, and a cached profile mirror.
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	ExpiresAt    int64         `json:"expires_at"` // epoch millis
	Profile      *api.UserInfo `json:"profile,omitempty"`
}

// SessionStore keeps the issued tokens on the client side and broadcasts
// session changes to all subscribers, so every part of the runtime
// observes login and logout consistently.
type SessionStore interface {
	// Persist stores the pair with an absolute expiry of now+expiresIn and
	// broadcasts a login event.
	Persist(pair *domain.TokenPair, expiresIn int64, profile *api.UserInfo) error

	// UpdateAccessToken replaces only the access token and expiry, as the
	// refresh flow does (the refresh token is not rotated).
	UpdateAccessToken(accessToken string, expiresIn int64) error

	// Clear removes all session fields and broadcasts a logout event.
	// Idempotent: clearing an empty store is a no-op broadcast-wise.
	Clear() error

	// IsValid reports token presence and stored expiry strictly in the
	// future. Equality with now counts as expired. No server contact.
	IsValid() bool

	// AccessToken returns the stored access token, or "" when absent.
	AccessToken() string

	// RefreshToken returns the stored refresh token, or "" when absent.
	RefreshToken() string

	// ExpiresAt returns the stored access-token expiry in epoch millis,
	// or 0 when no session is stored.
	ExpiresAt() int64

	// Profile returns the cached profile mirror, or nil.
	Profile() *api.UserInfo

	// Subscribe registers an observer channel for session events.
	Subscribe() <-chan SessionEvent

	// Unsubscribe removes and closes a channel returned by Subscribe.
	Unsubscribe(ch <-chan SessionEvent)
}

type sessionStore struct {
	mu      sync.Mutex
	storage Storage
	subs    map[chan SessionEvent]struct{}
	now     func() time.Time
}

// NewSessionStore creates a SessionStore over the given Storage.
func NewSessionStore(storage Storage) SessionStore {
	return &sessionStore{
		storage: storage,
		subs:    make(map[chan SessionEvent]struct{}),
		now:     time.Now,
	}
}

func (s *sessionStore) Persist(pair *domain.TokenPair, expiresIn int64, profile *api.UserInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    s.now().UnixMilli() + expiresIn*1000,
		Profile:      profile,
	}
	if err := s.storage.Save(session); err != nil {
		return err
	}

	s.broadcast(SessionEvent{Type: SessionEventLogin})
	return nil
}

func (s *sessionStore) UpdateAccessToken(accessToken string, expiresIn int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.Load()
	if err != nil {
		return err
	}
	if session == nil {
		session = &Session{}
	}
	session.AccessToken = accessToken
	session.ExpiresAt = s.now().UnixMilli() + expiresIn*1000

	return s.storage.Save(session)
}

func (s *sessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hadSession := false
	if session, err := s.storage.Load(); err == nil && session != nil {
		hadSession = session.AccessToken != ""
	}

	if err := s.storage.Delete(); err != nil {
		return err
	}

	if hadSession {
		s.broadcast(SessionEvent{Type: SessionEventLogout})
	}
	return nil
}

func (s *sessionStore) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.Load()
	if err != nil || session == nil || session.AccessToken == "" {
		return false
	}
	return s.now().UnixMilli() < session.ExpiresAt
}

func (s *sessionStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.Load()
	if err != nil || session == nil {
		return ""
	}
	return session.AccessToken
}

func (s *sessionStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.Load()
	if err != nil || session == nil {
		return ""
	}
	return session.RefreshToken
}

func (s *sessionStore) ExpiresAt() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.Load()
	if err != nil || session == nil {
		return 0
	}
	return session.ExpiresAt
}

func (s *sessionStore) Profile() *api.UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.Load()
	if err != nil || session == nil {
		return nil
	}
	return session.Profile
}

func (s *sessionStore) Subscribe() <-chan SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan SessionEvent, 4)
	s.subs[ch] = struct{}{}
	return ch
}

func (s *sessionStore) Unsubscribe(ch <-chan SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		if sub == ch {
			delete(s.subs, sub)
			close(sub)
			return
		}
	}
}

// broadcast must be called with the mutex held. Sends are non-blocking; a
// subscriber that stopped draining loses events rather than stalling the
// store.
func (s *sessionStore) broadcast(event SessionEvent) {
	for sub := range s.subs {
		select {
		case sub <- event:
		default:
		}
	}
}
