package client

import (
	"encoding/json"

	"github.com/baobao-chat/baochat/internal/realtime"
	"github.com/baobao-chat/baochat/internal/types"
)

// wireEvents translates pushed events into state changes. Handlers run
// on the channel's read goroutine, so state mutations happen in arrival
// order.
func (c *Client) wireEvents() {
	c.channel.Subscribe(realtime.EventNewMessage, func(data json.RawMessage) {
		var message types.Message
		if !c.decode(realtime.EventNewMessage, data, &message) {
			return
		}
		c.state.AppendMessage(message)
		c.window.HandleNewMessage(message)
		c.state.ApplyLastMessage(message)
		if c.state.Selected() == message.ConversationID && message.Sender.ID != c.state.Viewer() {
			if err := c.api.MarkRead(c.ctx(), message.ConversationID); err != nil {
				c.logger.Debug("mark-read failed", "conversation_id", message.ConversationID, "error", err)
			}
		}
	})

	c.channel.Subscribe(realtime.EventMessageUpdated, func(data json.RawMessage) {
		var message types.Message
		if c.decode(realtime.EventMessageUpdated, data, &message) {
			c.state.UpdateMessage(message)
		}
	})

	c.channel.Subscribe(realtime.EventMessageReacted, func(data json.RawMessage) {
		var message types.Message
		if c.decode(realtime.EventMessageReacted, data, &message) {
			c.state.UpdateMessage(message)
		}
	})

	c.channel.Subscribe(realtime.EventMessageRecalled, func(data json.RawMessage) {
		var recall realtime.RecallEvent
		if c.decode(realtime.EventMessageRecalled, data, &recall) {
			c.state.ApplyRecall(recall.MessageID)
		}
	})

	c.channel.Subscribe(realtime.EventUserTyping, func(data json.RawMessage) {
		var typing realtime.TypingEvent
		if c.decode(realtime.EventUserTyping, data, &typing) {
			c.state.SetTypingUser(typing.ConversationID, typing.UserID)
		}
	})

	c.channel.Subscribe(realtime.EventUserStopTyping, func(data json.RawMessage) {
		var typing realtime.TypingEvent
		if c.decode(realtime.EventUserStopTyping, data, &typing) {
			c.state.RemoveTypingUser(typing.ConversationID, typing.UserID)
		}
	})

	c.channel.Subscribe(realtime.EventOnlineUsers, func(data json.RawMessage) {
		var snapshot realtime.OnlineUsersEvent
		if c.decode(realtime.EventOnlineUsers, data, &snapshot) {
			c.state.SetOnlineUsers(snapshot)
		}
	})

	c.channel.Subscribe(realtime.EventUserOnline, func(data json.RawMessage) {
		var presence realtime.PresenceEvent
		if c.decode(realtime.EventUserOnline, data, &presence) {
			c.state.SetUserOnline(presence.UserID)
		}
	})

	c.channel.Subscribe(realtime.EventUserOffline, func(data json.RawMessage) {
		var presence realtime.PresenceEvent
		if c.decode(realtime.EventUserOffline, data, &presence) {
			c.state.SetUserOffline(presence.UserID)
		}
	})

	c.channel.Subscribe(realtime.EventUserStatusUpdate, func(data json.RawMessage) {
		var update realtime.StatusUpdateEvent
		if c.decode(realtime.EventUserStatusUpdate, data, &update) {
			c.state.ApplyStatusUpdate(update.UserID, update.Status, update.LastSeen)
		}
	})

	c.channel.Subscribe(realtime.EventNewConversation, func(data json.RawMessage) {
		var conversation types.Conversation
		if c.decode(realtime.EventNewConversation, data, &conversation) {
			c.state.UpsertConversation(conversation)
		}
	})

	c.channel.Subscribe(realtime.EventConversationUpdated, func(data json.RawMessage) {
		var conversation types.Conversation
		if c.decode(realtime.EventConversationUpdated, data, &conversation) {
			c.state.UpsertConversation(conversation)
		}
	})

	c.channel.Subscribe(realtime.EventFriendRequestReceived, func(data json.RawMessage) {
		var request types.FriendRequest
		if c.decode(realtime.EventFriendRequestReceived, data, &request) {
			c.state.AddReceivedRequest(request)
		}
	})

	c.channel.Subscribe(realtime.EventFriendRequestAccepted, func(data json.RawMessage) {
		var request types.FriendRequest
		if !c.decode(realtime.EventFriendRequestAccepted, data, &request) {
			return
		}
		c.state.RemoveSentRequest(request.ID)
		friend := request.To
		if friend.ID == c.state.Viewer() {
			friend = request.From
		}
		c.state.AddFriend(types.User{
			ID:          friend.ID,
			UserName:    friend.UserName,
			DisplayName: friend.DisplayName,
			AvatarURL:   friend.AvatarURL,
		})
	})

	c.channel.Subscribe(realtime.EventFriendRequestDeclined, func(data json.RawMessage) {
		var request types.FriendRequest
		if c.decode(realtime.EventFriendRequestDeclined, data, &request) {
			c.state.RemoveSentRequest(request.ID)
		}
	})

	c.channel.Subscribe(realtime.EventFriendRequestCancelled, func(data json.RawMessage) {
		var request types.FriendRequest
		if c.decode(realtime.EventFriendRequestCancelled, data, &request) {
			c.state.RemoveReceivedRequest(request.ID)
		}
	})

	c.channel.Subscribe(realtime.EventNewNotification, func(data json.RawMessage) {
		var notification types.Notification
		if c.decode(realtime.EventNewNotification, data, &notification) {
			c.state.AddNotification(notification)
		}
	})

	c.channel.SubscribeState(func(state realtime.State) {
		switch state {
		case realtime.StateConnected:
			// The server's room membership died with the old socket;
			// re-join so pushes for the open conversation resume. The
			// presence snapshot follows from the server on its own.
			if selected := c.state.Selected(); selected != "" {
				if err := c.channel.JoinConversation(c.ctx(), selected); err != nil {
					c.logger.Debug("rejoin emit failed", "conversation_id", selected, "error", err)
				}
			}
		case realtime.StateConnecting, realtime.StateDisconnected, realtime.StateTerminated:
			// Presence is only trustworthy while connected.
			c.state.ClearPresence()
		}
	})
}

func (c *Client) decode(event string, data json.RawMessage, out any) bool {
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("malformed event payload", "event", event, "error", err)
		return false
	}
	return true
}
