package realtime

import (
	"encoding/json"
	"time"

	"github.com/baobao-chat/baochat/internal/types"
)

// Envelope is the wire format for every frame in both directions: an
// event name and an opaque payload decoded by whoever subscribed.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Server-pushed events.
const (
	EventNewMessage            = "new-message"
	EventMessageUpdated        = "message-updated"
	EventMessageRecalled       = "message-recalled"
	EventMessageReacted        = "message-reacted"
	EventUserTyping            = "user-typing"
	EventUserStopTyping        = "user-stop-typing"
	EventOnlineUsers           = "getOnlineUsers"
	EventUserOnline            = "user-online"
	EventUserOffline           = "user-offline"
	EventUserStatusUpdate      = "user-status-update"
	EventNewConversation       = "new-conversation"
	EventConversationUpdated   = "conversation-updated"
	EventFriendRequestReceived  = "friend-request-received"
	EventFriendRequestAccepted  = "friend-request-accepted"
	EventFriendRequestDeclined  = "friend-request-declined"
	EventFriendRequestCancelled = "friend-request-cancelled"
	EventNewNotification        = "new-notification"
)

// Client-emitted events.
const (
	eventJoinConversation  = "join-conversation"
	eventLeaveConversation = "leave-conversation"
	eventTyping            = "typing"
	eventStopTyping        = "stop-typing"
)

// conversationRef is the payload for join/leave and typing emits.
type conversationRef struct {
	ConversationID types.ConversationID `json:"conversationId"`
}

// TypingEvent announces that a user started or stopped typing in a
// conversation.
type TypingEvent struct {
	ConversationID types.ConversationID `json:"conversationId"`
	UserID         types.UserID         `json:"userId"`
}

// RecallEvent identifies a message withdrawn by its sender.
type RecallEvent struct {
	ConversationID types.ConversationID `json:"conversationId"`
	MessageID      types.MessageID      `json:"messageId"`
}

// PresenceEvent announces one user going online or offline.
type PresenceEvent struct {
	UserID types.UserID `json:"userId"`
}

// StatusUpdateEvent carries a profile status change, including the
// last-seen timestamp shown for offline users.
type StatusUpdateEvent struct {
	UserID   types.UserID `json:"userId"`
	Status   string       `json:"status"`
	LastSeen *time.Time   `json:"lastSeen,omitempty"`
}

// OnlineUsersEvent is the authoritative presence snapshot pushed after
// connect. It replaces, never merges with, the previous snapshot.
type OnlineUsersEvent []types.UserID
