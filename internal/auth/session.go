package auth

import (
	"os"
	"sync"
)

// Session persists the current sign-in credential and broadcasts changes to
// subscribers. The credential itself stays opaque; callers use
// UserFromCredential to read the profile.
type Session struct {
	mu    sync.Mutex
	path  string
	token string
	subs  []chan struct{}
}

// NewSession loads any previously persisted credential from path. An empty
// path keeps the session in memory only.
func NewSession(path string) *Session {
	s := &Session{path: path}
	if path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			s.token = string(raw)
		}
	}
	return s
}

// Token returns the stored credential, or empty when signed out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User decodes the stored credential, reporting false when signed out or the
// credential cannot be decoded.
func (s *Session) User() (User, bool) {
	token := s.Token()
	if token == "" {
		return User{}, false
	}
	u, err := UserFromCredential(token)
	if err != nil {
		return User{}, false
	}
	return u, true
}

// SetToken persists a new credential and notifies subscribers.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	path := s.path
	s.mu.Unlock()

	if path != "" {
		if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
			return err
		}
	}
	s.broadcast()
	return nil
}

// Clear removes the stored credential and notifies subscribers.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token = ""
	path := s.path
	s.mu.Unlock()

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	s.broadcast()
	return nil
}

// Changes returns a channel that receives a signal after every credential
// change. The channel is buffered; a slow subscriber misses coalesced
// signals, not the fact that something changed.
func (s *Session) Changes() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Session) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
