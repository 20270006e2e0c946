package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/baobao-chat/baochat/internal/types"
)

// AuthResponse is the result of sign-in and credential renewal: a fresh
// access token together with the identity it belongs to.
type AuthResponse struct {
	AccessToken string      `json:"accessToken"`
	User        *types.User `json:"user"`
}

// SignIn authenticates with username and password and installs the
// resulting session. The refresh proof arrives as a cookie on the
// response and stays in the client's jar.
func (c *Client) SignIn(ctx context.Context, userName, password string) (*AuthResponse, error) {
	if userName == "" {
		return nil, fmt.Errorf("api: username is required for sign-in")
	}
	body := map[string]string{"user_name": userName, "password": password}

	var auth AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &auth); err != nil {
		return nil, fmt.Errorf("api: sign-in failed: %w", err)
	}
	if auth.AccessToken == "" || auth.User == nil {
		return nil, fmt.Errorf("api: sign-in response missing token or user")
	}
	c.creds.Set(auth.AccessToken, auth.User)
	c.logger.Info("signed in", "user_id", auth.User.ID, "user_name", auth.User.UserName)
	return &auth, nil
}

// SignOut invalidates the session server-side and clears the local
// credential either way.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.creds.Clear()
	if err != nil {
		return fmt.Errorf("api: sign-out failed: %w", err)
	}
	return nil
}

// Refresh exchanges the refresh cookie for a new access token. This is
// the renewal endpoint itself: it runs on the plain request path and is
// never intercepted, so a failing renewal cannot recurse. Callers other
// than the gateway use it as the startup resume check: a 401 here
// simply means "not signed in yet".
func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	var auth AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, nil, &auth); err != nil {
		return nil, err
	}
	if auth.AccessToken == "" || auth.User == nil {
		return nil, fmt.Errorf("api: refresh response missing token or user")
	}
	return &auth, nil
}

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var out struct {
		User *types.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/home/users/me", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: fetch profile: %w", err)
	}
	return out.User, nil
}

// UpdateProfile changes the profile fields and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, displayName, bio, phone string) (*types.User, error) {
	body := map[string]string{"display_name": displayName, "bio": bio, "phone": phone}
	var out struct {
		User *types.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/home/users/update", nil, body, &out); err != nil {
		return nil, fmt.Errorf("api: update profile: %w", err)
	}
	if out.User != nil {
		c.creds.SetIdentity(out.User)
	}
	return out.User, nil
}
