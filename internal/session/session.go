// Package session keeps browser identity in a signed cookie: the anonymous cart session id,
// the logged-in user and one-shot flash messages.
package session

import (
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	keySessionID = "sid"
	keyUserID    = "user_id"
	keyEmail     = "email"
	keyName      = "name"
	keyRole      = "role"
)

// Flash kinds
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a message shown once on the next rendered page
type Flash struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// Manager reads and writes the session cookie
type Manager struct {
	store sessions.Store
	name  string
}

// NewManager creates a cookie backed session manager. An empty secret gets a random
// per-process key, which invalidates sessions on restart.
func NewManager(cfg config.SessionConfig) *Manager {
	key := []byte(cfg.Secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(key)
	store.MaxAge(cfg.MaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.Secure
	store.Options.SameSite = http.SameSiteLaxMode

	name := cfg.Name
	if name == "" {
		name = "storefront_session"
	}

	return &Manager{store: store, name: name}
}

func (m *Manager) get(r *http.Request) *sessions.Session {
	// A tampered or stale cookie yields a fresh session rather than an error
	s, err := m.store.Get(r, m.name)
	if err != nil {
		s, _ = m.store.New(r, m.name)
	}
	return s
}

// Owner resolves who the request acts for. Every visitor gets an anonymous session id,
// created and persisted on first sight.
func (m *Manager) Owner(w http.ResponseWriter, r *http.Request) (domain.Owner, error) {
	s := m.get(r)

	sid, _ := s.Values[keySessionID].(string)
	if sid == "" {
		sid = uuid.NewString()
		s.Values[keySessionID] = sid
		if err := s.Save(r, w); err != nil {
			return domain.Owner{}, fmt.Errorf("failed to save session: %w", err)
		}
	}

	owner := domain.Owner{SessionID: sid}
	if userID, ok := s.Values[keyUserID].(int64); ok && userID > 0 {
		owner.UserID = userID
		owner.Email, _ = s.Values[keyEmail].(string)
		owner.Name, _ = s.Values[keyName].(string)
		owner.Role, _ = s.Values[keyRole].(string)
	}

	return owner, nil
}

// Login stores the user's identity in the session
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	s := m.get(r)

	if sid, _ := s.Values[keySessionID].(string); sid == "" {
		s.Values[keySessionID] = uuid.NewString()
	}
	s.Values[keyUserID] = user.ID
	s.Values[keyEmail] = user.Email
	s.Values[keyName] = user.FullName
	s.Values[keyRole] = user.Role

	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Logout discards the whole session, including the anonymous id and pending flashes
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	s.Values = map[interface{}]interface{}{}
	s.Options.MaxAge = -1

	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// AddFlash queues a message for the next page
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) error {
	s := m.get(r)
	s.AddFlash(Flash{Kind: kind, Message: message})

	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// Flashes pops the queued messages
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	s := m.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}

	flashes := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if flash, ok := f.(Flash); ok {
			flashes = append(flashes, flash)
		}
	}

	if err := s.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return flashes, nil
}
