package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/baobao-chat/baochat/internal/types"
)

// Friends lists the user's friends, paginated.
func (c *Client) Friends(ctx context.Context, page, limit int) ([]types.User, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	query := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	var out struct {
		Friends []types.User `json:"friends"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/friends", query, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch friends: %w", err)
	}
	return out.Friends, nil
}

// RemoveFriend ends the friendship.
func (c *Client) RemoveFriend(ctx context.Context, friendID types.UserID) error {
	if err := c.do(ctx, http.MethodDelete, "/home/friends/"+string(friendID), nil, nil, nil); err != nil {
		return fmt.Errorf("api: remove friend %s: %w", friendID, err)
	}
	return nil
}

// SendFriendRequest invites another user.
func (c *Client) SendFriendRequest(ctx context.Context, toUserID types.UserID) (*types.FriendRequest, error) {
	body := map[string]string{"toUserId": string(toUserID)}
	var out struct {
		Request *types.FriendRequest `json:"request"`
	}
	if err := c.do(ctx, http.MethodPost, "/home/friend-requests/send", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: send friend request: %w", err)
	}
	return out.Request, nil
}

// SentRequests lists the requests the user has sent and that are still pending.
func (c *Client) SentRequests(ctx context.Context) ([]types.FriendRequest, error) {
	var out struct {
		Requests []types.FriendRequest `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/friend-requests/sent", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch sent requests: %w", err)
	}
	return out.Requests, nil
}

// ReceivedRequests lists pending requests addressed to the user.
func (c *Client) ReceivedRequests(ctx context.Context) ([]types.FriendRequest, error) {
	var out struct {
		Requests []types.FriendRequest `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/friend-requests/received", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch received requests: %w", err)
	}
	return out.Requests, nil
}

// AcceptFriendRequest accepts a pending request.
func (c *Client) AcceptFriendRequest(ctx context.Context, id types.RequestID) error {
	if err := c.do(ctx, http.MethodPost, "/home/friend-requests/"+string(id)+"/accept", nil, nil, nil); err != nil {
		return fmt.Errorf("api: accept friend request %s: %w", id, err)
	}
	return nil
}

// DeclineFriendRequest declines a pending request.
func (c *Client) DeclineFriendRequest(ctx context.Context, id types.RequestID) error {
	if err := c.do(ctx, http.MethodPost, "/home/friend-requests/"+string(id)+"/decline", nil, nil, nil); err != nil {
		return fmt.Errorf("api: decline friend request %s: %w", id, err)
	}
	return nil
}

// CancelFriendRequest withdraws a request the user sent.
func (c *Client) CancelFriendRequest(ctx context.Context, id types.RequestID) error {
	if err := c.do(ctx, http.MethodDelete, "/home/friend-requests/"+string(id)+"/cancel", nil, nil, nil); err != nil {
		return fmt.Errorf("api: cancel friend request %s: %w", id, err)
	}
	return nil
}

// SearchUsers finds users by name for the add-friend flow.
func (c *Client) SearchUsers(ctx context.Context, keyword string) ([]types.User, error) {
	query := url.Values{"q": {keyword}}
	var out struct {
		Users []types.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/users/search", query, nil, &out); err != nil {
		return nil, fmt.Errorf("api: search users: %w", err)
	}
	return out.Users, nil
}

// Notifications lists the user's notifications, paginated.
func (c *Client) Notifications(ctx context.Context, page, limit int) ([]types.Notification, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	query := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	var out struct {
		Notifications []types.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/notifications", query, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch notifications: %w", err)
	}
	return out.Notifications, nil
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id types.NotificationID) error {
	if err := c.do(ctx, http.MethodPut, "/home/notifications/"+string(id)+"/read", nil, nil, nil); err != nil {
		return fmt.Errorf("api: mark notification read %s: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead flags every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPut, "/home/notifications/read-all", nil, nil, nil); err != nil {
		return fmt.Errorf("api: mark all notifications read: %w", err)
	}
	return nil
}
