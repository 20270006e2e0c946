package chatstate

import (
	"sort"
	"time"

	"github.com/baobao-chat/baochat/internal/types"
)

// SetTypingUser lights the typing indicator for a user in a
// conversation. A repeat event refreshes the TTL. The indicator clears
// on a stop event or when the TTL expires without one, so a peer that
// vanished mid-keystroke never leaves a stuck indicator. The viewer's
// own typing is never recorded.
func (s *Store) SetTypingUser(conversationID types.ConversationID, userID types.UserID) {
	s.mu.Lock()
	if userID == s.viewer {
		s.mu.Unlock()
		return
	}
	timers := s.typing[conversationID]
	if timers == nil {
		timers = make(map[types.UserID]*time.Timer)
		s.typing[conversationID] = timers
	}
	if timer, ok := timers[userID]; ok {
		timer.Stop()
	}
	timers[userID] = time.AfterFunc(s.typingTTL, func() {
		s.expireTyping(conversationID, userID)
	})
	s.mu.Unlock()
	s.notify()
}

// RemoveTypingUser clears the typing indicator for a user.
func (s *Store) RemoveTypingUser(conversationID types.ConversationID, userID types.UserID) {
	s.mu.Lock()
	removed := s.removeTypingLocked(conversationID, userID)
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

func (s *Store) expireTyping(conversationID types.ConversationID, userID types.UserID) {
	s.mu.Lock()
	removed := s.removeTypingLocked(conversationID, userID)
	s.mu.Unlock()
	if removed {
		s.logger.Debug("typing indicator expired", "conversation_id", conversationID, "user_id", userID)
		s.notify()
	}
}

func (s *Store) removeTypingLocked(conversationID types.ConversationID, userID types.UserID) bool {
	timers := s.typing[conversationID]
	timer, ok := timers[userID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(timers, userID)
	if len(timers) == 0 {
		delete(s.typing, conversationID)
	}
	return true
}

// TypingUsers returns who is typing in a conversation, sorted for
// stable rendering.
func (s *Store) TypingUsers(conversationID types.ConversationID) []types.UserID {
	s.mu.RLock()
	ids := make([]types.UserID, 0, len(s.typing[conversationID]))
	for id := range s.typing[conversationID] {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
