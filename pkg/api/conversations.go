package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baobao-chat/baochat/internal/types"
)

// Conversations lists the user's conversations, optionally filtered by
// a search term.
func (c *Client) Conversations(ctx context.Context, search string) ([]types.Conversation, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}
	var out struct {
		Conversations []types.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/conversations", query, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch conversations: %w", err)
	}
	return out.Conversations, nil
}

// Conversation fetches a single conversation by ID.
func (c *Client) Conversation(ctx context.Context, id types.ConversationID) (*types.Conversation, error) {
	var out struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/conversations/"+string(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch conversation %s: %w", id, err)
	}
	return out.Conversation, nil
}

// CreateDirect creates (or returns the existing) one-to-one conversation
// with the given user.
func (c *Client) CreateDirect(ctx context.Context, userID types.UserID) (*types.Conversation, error) {
	body := map[string]string{"userId": string(userID)}
	var out struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPost, "/home/conversations/direct", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: create direct conversation: %w", err)
	}
	return out.Conversation, nil
}

// CreateGroup creates a group conversation with the given members.
func (c *Client) CreateGroup(ctx context.Context, name string, participantIDs []types.UserID, avatarURL string) (*types.Conversation, error) {
	body := map[string]any{
		"name":           name,
		"participantIds": participantIDs,
	}
	if avatarURL != "" {
		body["groupAvatarUrl"] = avatarURL
	}
	var out struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPost, "/home/conversations/group", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: create group: %w", err)
	}
	return out.Conversation, nil
}

// RenameGroup changes a group conversation's name.
func (c *Client) RenameGroup(ctx context.Context, id types.ConversationID, name string) (*types.Conversation, error) {
	body := map[string]string{"name": name}
	var out struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPut, "/home/conversations/"+string(id)+"/group-name", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: rename group %s: %w", id, err)
	}
	return out.Conversation, nil
}

func (c *Client) updateMembers(ctx context.Context, id types.ConversationID, action string, userIDs []types.UserID) (*types.Conversation, error) {
	body := map[string]any{"action": action, "userIds": userIDs}
	var out struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPut, "/home/conversations/"+string(id)+"/members", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: %s members on %s: %w", action, id, err)
	}
	return out.Conversation, nil
}

// AddMembers adds users to a group conversation.
func (c *Client) AddMembers(ctx context.Context, id types.ConversationID, userIDs []types.UserID) (*types.Conversation, error) {
	return c.updateMembers(ctx, id, "add", userIDs)
}

// RemoveMembers removes users from a group conversation.
func (c *Client) RemoveMembers(ctx context.Context, id types.ConversationID, userIDs []types.UserID) (*types.Conversation, error) {
	return c.updateMembers(ctx, id, "remove", userIDs)
}

// MarkRead tells the server the viewer has seen the conversation; the
// server resets the viewer's unread counter.
func (c *Client) MarkRead(ctx context.Context, id types.ConversationID) error {
	if err := c.do(ctx, http.MethodPost, "/home/conversations/"+string(id)+"/mark-read", nil, nil, nil); err != nil {
		return fmt.Errorf("api: mark read %s: %w", id, err)
	}
	return nil
}

// DeleteConversation removes the conversation for the current user.
func (c *Client) DeleteConversation(ctx context.Context, id types.ConversationID) error {
	if err := c.do(ctx, http.MethodDelete, "/home/conversations/"+string(id), nil, nil, nil); err != nil {
		return fmt.Errorf("api: delete conversation %s: %w", id, err)
	}
	return nil
}
