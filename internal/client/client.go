package client

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/baobao-chat/baochat/internal/chatstate"
	"github.com/baobao-chat/baochat/internal/config"
	"github.com/baobao-chat/baochat/internal/realtime"
	"github.com/baobao-chat/baochat/internal/session"
	"github.com/baobao-chat/baochat/internal/types"
	"github.com/baobao-chat/baochat/internal/window"
	"github.com/baobao-chat/baochat/pkg/api"
)

// Client wires the pieces of the chat client together: the session,
// the request gateway, the realtime channel, the canonical chat state,
// and the message window. It owns sign-in and sign-out, conversation
// selection, and the translation of pushed events into state changes.
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	creds   *session.Store
	api     *api.Client
	state   *chatstate.Store
	channel *realtime.Channel
	window  *window.Window
	typist  *Typist

	wireMu sync.Mutex
	wired  bool

	runCtx context.Context
}

// New builds a Client from configuration. Nothing connects until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	creds := session.NewStore()

	cookiePath := ""
	if cfg.DataDir != "" {
		cookiePath = filepath.Join(cfg.DataDir, "cookies.json")
	}
	apiClient, err := api.NewClient(api.ClientConfig{
		BaseURL:     cfg.Server.BaseURL,
		Credentials: creds,
		CookiePath:  cookiePath,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client: build api client: %w", err)
	}

	state := chatstate.New(chatstate.Config{
		TypingTTL: cfg.TypingTTL(),
		Logger:    logger,
	})

	channel, err := realtime.New(realtime.Config{
		BaseURL:     cfg.Server.BaseURL,
		SocketPath:  cfg.Server.SocketPath,
		Credentials: creds,
		Policy: realtime.ReconnectPolicy{
			MaxAttempts:  cfg.Reconnect.MaxAttempts,
			InitialDelay: cfg.ReconnectInitialDelay(),
			Multiplier:   cfg.Reconnect.Multiplier,
			MaxDelay:     cfg.ReconnectMaxDelay(),
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client: build realtime channel: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		creds:   creds,
		api:     apiClient,
		state:   state,
		channel: channel,
	}

	c.window, err = window.New(window.Config{
		Store:           state,
		Fetch:           c.fetchHistoryPage,
		PageSize:        cfg.Chat.PageSize,
		BottomTolerance: float64(cfg.Chat.BottomTolerance),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client: build message window: %w", err)
	}

	c.typist = NewTypist(cfg.TypingIdle(), c.emitTypingStart, c.emitTypingStop)

	// Losing the credential kills the socket's token with it, whether
	// through sign-out or a failed renewal. Tear the channel down; the
	// next sign-in brings it back up.
	creds.Subscribe(func(s session.Session) {
		if s.Authenticated() {
			return
		}
		c.typist.Cancel()
		c.teardownChannel()
	})
	return c, nil
}

// ensureWired registers the event handlers with the channel once per
// signed-in cycle. Close removes them, so every begin re-registers.
func (c *Client) ensureWired() {
	c.wireMu.Lock()
	defer c.wireMu.Unlock()
	if c.wired {
		return
	}
	c.wireEvents()
	c.wired = true
}

func (c *Client) teardownChannel() {
	c.wireMu.Lock()
	c.wired = false
	c.wireMu.Unlock()
	c.channel.Close()
}

// State returns the canonical chat state.
func (c *Client) State() *chatstate.Store { return c.state }

// Window returns the message window.
func (c *Client) Window() *window.Window { return c.window }

// Session returns the session store.
func (c *Client) Session() *session.Store { return c.creds }

// API returns the request gateway, for operations the client does not
// orchestrate itself (profile, friends, search).
func (c *Client) API() *api.Client { return c.api }

// Channel returns the realtime channel.
func (c *Client) Channel() *realtime.Channel { return c.channel }

func (c *Client) fetchHistoryPage(ctx context.Context, conversationID types.ConversationID, before types.MessageID, limit int) ([]types.Message, error) {
	return c.api.Messages(ctx, conversationID, api.MessagesOptions{
		PageSize: limit,
		BeforeID: before,
	})
}

// Start restores the persisted identity and tries the renewal endpoint
// once. When the refresh proof is still valid the session resumes
// without a password; a failed renewal just means signed out.
func (c *Client) Start(ctx context.Context) error {
	c.runCtx = ctx

	if err := c.creds.LoadIdentity(c.cfg.DataDir); err != nil {
		c.logger.Warn("could not restore identity", "error", err)
	}

	auth, err := c.api.Refresh(ctx)
	if err != nil {
		c.logger.Debug("no resumable session", "error", err)
		return nil
	}
	c.creds.Set(auth.AccessToken, auth.User)
	return c.begin(ctx)
}

// SignIn authenticates and brings the signed-in state up.
func (c *Client) SignIn(ctx context.Context, userName, password string) error {
	if _, err := c.api.SignIn(ctx, userName, password); err != nil {
		return err
	}
	return c.begin(ctx)
}

// begin is the shared path after a credential is installed: persist the
// identity, open the push channel, and load the initial state.
func (c *Client) begin(ctx context.Context) error {
	identity := c.creds.Identity()
	if identity == nil {
		return fmt.Errorf("client: no identity after authentication")
	}
	c.state.SetViewer(identity.ID)
	if err := c.creds.SaveIdentity(c.cfg.DataDir); err != nil {
		c.logger.Warn("could not persist identity", "error", err)
	}

	c.ensureWired()
	c.channel.Open(ctx)
	return c.loadInitialState(ctx)
}

func (c *Client) loadInitialState(ctx context.Context) error {
	conversations, err := c.api.Conversations(ctx, "")
	if err != nil {
		return fmt.Errorf("client: load conversations: %w", err)
	}
	c.state.SetConversations(conversations)

	// Friends and notifications are decoration; their failure should
	// not block the conversation list.
	if friends, err := c.api.Friends(ctx, 1, 100); err != nil {
		c.logger.Warn("could not load friends", "error", err)
	} else {
		c.state.SetFriends(friends)
	}
	if requests, err := c.api.ReceivedRequests(ctx); err != nil {
		c.logger.Warn("could not load friend requests", "error", err)
	} else {
		c.state.SetReceivedRequests(requests)
	}
	if notifications, err := c.api.Notifications(ctx, 1, 20); err != nil {
		c.logger.Warn("could not load notifications", "error", err)
	} else {
		c.state.SetNotifications(notifications)
	}
	return nil
}

// SignOut tears the signed-in state down: channel closed, server-side
// session invalidated, local state and persisted identity wiped.
func (c *Client) SignOut(ctx context.Context) error {
	c.typist.Cancel()
	c.teardownChannel()
	err := c.api.SignOut(ctx)
	c.state.Reset()
	if saveErr := c.creds.SaveIdentity(c.cfg.DataDir); saveErr != nil {
		c.logger.Warn("could not remove persisted identity", "error", saveErr)
	}
	return err
}

// SelectConversation switches the current conversation: leave the old
// room, select and join the new one, load its newest page, and tell the
// server it has been read. A Forbidden load (membership revoked) clears
// the selection instead of leaving a dead conversation on screen.
func (c *Client) SelectConversation(ctx context.Context, id types.ConversationID) error {
	previous := c.state.Selected()
	if previous == id {
		return nil
	}
	c.typist.Cancel()
	if previous != "" {
		if err := c.channel.LeaveConversation(ctx, previous); err != nil {
			c.logger.Debug("leave emit failed", "conversation_id", previous, "error", err)
		}
	}

	c.state.Select(id)
	if err := c.channel.JoinConversation(ctx, id); err != nil {
		c.logger.Debug("join emit failed", "conversation_id", id, "error", err)
	}

	if err := c.window.LoadInitial(ctx, id); err != nil {
		if api.IsForbidden(err) || api.IsNotFound(err) {
			c.logger.Warn("conversation no longer accessible", "conversation_id", id, "error", err)
			c.state.Deselect()
		}
		return err
	}

	if err := c.api.MarkRead(ctx, id); err != nil {
		c.logger.Debug("mark-read failed", "conversation_id", id, "error", err)
	}
	return nil
}

// LoadOlderMessages pulls the next older history page into the window.
func (c *Client) LoadOlderMessages(ctx context.Context) error {
	return c.window.LoadOlder(ctx)
}

// SendMessage sends into the selected conversation with an optimistic
// local entry: the message appears immediately under a provisional ID
// and is reconciled with the server's copy when the send confirms. A
// failed send removes the entry.
func (c *Client) SendMessage(ctx context.Context, content, imageURL string, replyTo types.MessageID) (*types.Message, error) {
	conversationID := c.state.Selected()
	if conversationID == "" {
		return nil, fmt.Errorf("client: no conversation selected")
	}
	c.typist.Cancel()

	localID := types.NewLocalMessageID()
	c.state.AppendMessage(types.Message{
		ID:             localID,
		ConversationID: conversationID,
		Sender:         types.UserRef{ID: c.state.Viewer()},
		Content:        content,
		ImageURL:       imageURL,
		ReplyTo:        replyTo,
	})
	c.window.ScrollToBottom()

	confirmed, err := c.api.SendMessage(ctx, conversationID, content, imageURL, replyTo)
	if err != nil {
		c.state.DropLocal(localID)
		return nil, err
	}
	c.state.ReconcileLocal(localID, *confirmed)
	c.state.ApplyLastMessage(*confirmed)
	return confirmed, nil
}

// EditMessage edits a sent message and applies the server's copy.
func (c *Client) EditMessage(ctx context.Context, id types.MessageID, content string) error {
	updated, err := c.api.EditMessage(ctx, id, content)
	if err != nil {
		return err
	}
	if updated != nil {
		c.state.UpdateMessage(*updated)
	}
	return nil
}

// RecallMessage withdraws a sent message.
func (c *Client) RecallMessage(ctx context.Context, id types.MessageID) error {
	if err := c.api.RecallMessage(ctx, id); err != nil {
		return err
	}
	c.state.ApplyRecall(id)
	return nil
}

// ReactToMessage toggles an emoji reaction.
func (c *Client) ReactToMessage(ctx context.Context, id types.MessageID, emoji string) error {
	updated, err := c.api.ReactToMessage(ctx, id, emoji)
	if err != nil {
		return err
	}
	if updated != nil {
		c.state.UpdateMessage(*updated)
	}
	return nil
}

// TypingInput reports one keystroke in the composer. The typist turns
// keystroke bursts into one start emit and, after the idle gap, one
// stop emit.
func (c *Client) TypingInput() {
	if c.state.Selected() == "" {
		return
	}
	c.typist.Input()
}

func (c *Client) emitTypingStart() {
	conversationID := c.state.Selected()
	if conversationID == "" {
		return
	}
	if err := c.channel.Typing(c.ctx(), conversationID); err != nil {
		c.logger.Debug("typing emit failed", "error", err)
	}
}

func (c *Client) emitTypingStop() {
	conversationID := c.state.Selected()
	if conversationID == "" {
		return
	}
	if err := c.channel.StopTyping(c.ctx(), conversationID); err != nil {
		c.logger.Debug("stop-typing emit failed", "error", err)
	}
}

func (c *Client) ctx() context.Context {
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}
