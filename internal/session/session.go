// internal/session/session.go
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/baobao-chat/baochat/internal/types"
)

// Session is a snapshot of the authenticated state: the short-lived
// access token and the identity it belongs to. Either both are set or
// both are empty.
type Session struct {
	Token    string
	Identity *types.User
}

// Authenticated reports whether the snapshot carries a usable credential.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.Identity != nil
}

// Store holds the process-wide session. Every outgoing request reads the
// current token from here, and credential renewal installs its result
// here as one atomic change. The access token lives only in memory; the
// identity projection may be persisted so the UI can render a profile
// before renewal completes on the next start.
type Store struct {
	mu          sync.RWMutex
	session     Session
	subscribers map[int]func(Session)
	nextSub     int
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{subscribers: make(map[int]func(Session))}
}

// Current returns a snapshot of the session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Token returns the current access token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Identity returns the signed-in user, or nil.
func (s *Store) Identity() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Identity
}

// UserID returns the signed-in user's ID, or "" when signed out.
func (s *Store) UserID() types.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.Identity == nil {
		return ""
	}
	return s.session.Identity.ID
}

// Authenticated reports whether a credential is currently held.
func (s *Store) Authenticated() bool {
	return s.Current().Authenticated()
}

// Set installs a new token and identity as one observable change.
// Sign-in and successful renewal both land here.
func (s *Store) Set(token string, identity *types.User) {
	s.mu.Lock()
	s.session = Session{Token: token, Identity: identity}
	snapshot := s.session
	subs := s.snapshotSubscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// SetIdentity replaces only the identity, keeping the token. Used when a
// profile update comes back from the server.
func (s *Store) SetIdentity(identity *types.User) {
	s.mu.Lock()
	s.session.Identity = identity
	snapshot := s.session
	subs := s.snapshotSubscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Clear wipes the session. Sign-out, renewal failure, and explicit
// invalidation all end up here.
func (s *Store) Clear() {
	s.Set("", nil)
}

// Subscribe registers a callback invoked after every session change with
// the new snapshot. The returned cancel func removes the subscription
// and is safe to call more than once.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotSubscribers() []func(Session) {
	out := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}

// identityFile is the persisted projection: profile only, never the
// access token. The credential is re-acquired via renewal on start.
type identityFile struct {
	User *types.User `json:"user"`
}

func identityPath(dataDir string) string {
	return filepath.Join(dataDir, "session.json")
}

// SaveIdentity writes the identity projection to <dataDir>/session.json
// atomically (temp file + rename). A nil identity removes the file.
func (s *Store) SaveIdentity(dataDir string) error {
	identity := s.Identity()
	path := identityPath(dataDir)

	if identity == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(identityFile{User: identity}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// LoadIdentity restores the persisted identity projection, if any. The
// returned session is not authenticated: the token stays empty until
// renewal succeeds.
func (s *Store) LoadIdentity(dataDir string) error {
	data, err := os.ReadFile(identityPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}
	var file identityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unmarshal session file: %w", err)
	}
	if file.User != nil {
		s.mu.Lock()
		s.session.Identity = file.User
		s.mu.Unlock()
	}
	return nil
}
