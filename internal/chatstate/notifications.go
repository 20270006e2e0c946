package chatstate

import (
	"github.com/baobao-chat/baochat/internal/types"
)

// SetNotifications replaces the notification list, newest-first.
func (s *Store) SetNotifications(notifications []types.Notification) {
	s.mu.Lock()
	s.notifications = append([]types.Notification(nil), notifications...)
	s.mu.Unlock()
	s.notify()
}

// Notifications returns a copy of the notification list.
func (s *Store) Notifications() []types.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Notification(nil), s.notifications...)
}

// AddNotification prepends a pushed notification, deduplicated by ID.
func (s *Store) AddNotification(notification types.Notification) {
	s.mu.Lock()
	for _, existing := range s.notifications {
		if existing.ID == notification.ID {
			s.mu.Unlock()
			return
		}
	}
	s.notifications = append([]types.Notification{notification}, s.notifications...)
	s.mu.Unlock()
	s.notify()
}

// MarkNotificationRead flags one notification read.
func (s *Store) MarkNotificationRead(id types.NotificationID) {
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// MarkAllNotificationsRead flags every notification read.
func (s *Store) MarkAllNotificationsRead() {
	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.mu.Unlock()
	s.notify()
}

// UnreadNotificationCount counts unread notifications.
func (s *Store) UnreadNotificationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, notification := range s.notifications {
		if !notification.Read {
			count++
		}
	}
	return count
}
