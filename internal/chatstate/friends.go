package chatstate

import (
	"github.com/baobao-chat/baochat/internal/types"
)

// SetFriends replaces the friends list.
func (s *Store) SetFriends(friends []types.User) {
	s.mu.Lock()
	s.friends = append([]types.User(nil), friends...)
	s.mu.Unlock()
	s.notify()
}

// Friends returns a copy of the friends list.
func (s *Store) Friends() []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.User(nil), s.friends...)
}

// AddFriend appends a new friend if not already present.
func (s *Store) AddFriend(user types.User) {
	s.mu.Lock()
	for _, friend := range s.friends {
		if friend.ID == user.ID {
			s.mu.Unlock()
			return
		}
	}
	s.friends = append(s.friends, user)
	s.mu.Unlock()
	s.notify()
}

// RemoveFriend drops a friend by ID.
func (s *Store) RemoveFriend(id types.UserID) {
	s.mu.Lock()
	kept := s.friends[:0]
	for _, friend := range s.friends {
		if friend.ID != id {
			kept = append(kept, friend)
		}
	}
	s.friends = kept
	s.mu.Unlock()
	s.notify()
}

// SetSentRequests replaces the pending requests the viewer sent.
func (s *Store) SetSentRequests(requests []types.FriendRequest) {
	s.mu.Lock()
	s.sentRequests = append([]types.FriendRequest(nil), requests...)
	s.mu.Unlock()
	s.notify()
}

// SetReceivedRequests replaces the pending requests addressed to the viewer.
func (s *Store) SetReceivedRequests(requests []types.FriendRequest) {
	s.mu.Lock()
	s.receivedRequests = append([]types.FriendRequest(nil), requests...)
	s.mu.Unlock()
	s.notify()
}

// SentRequests returns a copy of the viewer's pending sent requests.
func (s *Store) SentRequests() []types.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.FriendRequest(nil), s.sentRequests...)
}

// ReceivedRequests returns a copy of the viewer's pending incoming requests.
func (s *Store) ReceivedRequests() []types.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.FriendRequest(nil), s.receivedRequests...)
}

// AddReceivedRequest records a pushed incoming request, deduplicated by ID.
func (s *Store) AddReceivedRequest(request types.FriendRequest) {
	s.mu.Lock()
	for _, existing := range s.receivedRequests {
		if existing.ID == request.ID {
			s.mu.Unlock()
			return
		}
	}
	s.receivedRequests = append([]types.FriendRequest{request}, s.receivedRequests...)
	s.mu.Unlock()
	s.notify()
}

// RemoveSentRequest drops a sent request, after acceptance, decline, or
// cancellation.
func (s *Store) RemoveSentRequest(id types.RequestID) {
	s.mu.Lock()
	kept := s.sentRequests[:0]
	for _, request := range s.sentRequests {
		if request.ID != id {
			kept = append(kept, request)
		}
	}
	s.sentRequests = kept
	s.mu.Unlock()
	s.notify()
}

// RemoveReceivedRequest drops an incoming request once resolved.
func (s *Store) RemoveReceivedRequest(id types.RequestID) {
	s.mu.Lock()
	kept := s.receivedRequests[:0]
	for _, request := range s.receivedRequests {
		if request.ID != id {
			kept = append(kept, request)
		}
	}
	s.receivedRequests = kept
	s.mu.Unlock()
	s.notify()
}
