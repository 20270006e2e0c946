package chatstate

import (
	"sort"
	"time"

	"github.com/baobao-chat/baochat/internal/types"
)

// SetOnlineUsers installs the authoritative presence snapshot, replacing
// whatever was there. The server pushes this after every connect, so a
// reconnect heals any drift from missed online/offline events.
func (s *Store) SetOnlineUsers(ids []types.UserID) {
	s.mu.Lock()
	s.online = make(map[types.UserID]struct{}, len(ids))
	for _, id := range ids {
		s.online[id] = struct{}{}
	}
	s.mu.Unlock()
	s.notify()
}

// SetUserOnline marks one user online.
func (s *Store) SetUserOnline(id types.UserID) {
	s.mu.Lock()
	s.online[id] = struct{}{}
	s.mu.Unlock()
	s.notify()
}

// SetUserOffline marks one user offline.
func (s *Store) SetUserOffline(id types.UserID) {
	s.mu.Lock()
	delete(s.online, id)
	s.mu.Unlock()
	s.notify()
}

// IsOnline reports whether the user is currently online.
func (s *Store) IsOnline(id types.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[id]
	return ok
}

// OnlineUsers returns the online user IDs, sorted for stable rendering.
func (s *Store) OnlineUsers() []types.UserID {
	s.mu.RLock()
	ids := make([]types.UserID, 0, len(s.online))
	for id := range s.online {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ClearPresence drops the snapshot. Used when the channel disconnects:
// stale presence is worse than no presence.
func (s *Store) ClearPresence() {
	s.mu.Lock()
	s.online = make(map[types.UserID]struct{})
	s.mu.Unlock()
	s.notify()
}

// ApplyStatusUpdate records a user's profile status change and, for
// offline users, the last-seen timestamp shown in the UI.
func (s *Store) ApplyStatusUpdate(id types.UserID, status string, lastSeen *time.Time) {
	s.mu.Lock()
	entry := s.statuses[id]
	entry.status = status
	if lastSeen != nil {
		entry.lastSeen = *lastSeen
	}
	s.statuses[id] = entry
	s.mu.Unlock()
	s.notify()
}

// UserStatus returns the recorded status and last-seen time for a user.
func (s *Store) UserStatus(id types.UserID) (status string, lastSeen time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.statuses[id]
	return entry.status, entry.lastSeen, ok
}
