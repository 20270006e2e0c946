package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/baobao-chat/baochat/internal/session"
	"github.com/baobao-chat/baochat/internal/types"
)

// State is the lifecycle state of the channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by emits while the channel has no live
// connection. Emits are not queued; callers that need delivery re-emit
// after the channel reports connected again.
var ErrNotConnected = errors.New("realtime: not connected")

const dialTimeout = 10 * time.Second

// Config holds configuration for creating a Channel.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8282". The
	// scheme is rewritten to ws/wss for the socket connection.
	BaseURL string
	// SocketPath is the websocket endpoint path. Defaults to "/ws".
	SocketPath string
	// Credentials supplies the access token attached to the dial URL.
	// Read at dial time, so reconnects pick up a renewed token.
	Credentials *session.Store
	// Policy bounds reconnection. Zero value means DefaultReconnectPolicy.
	Policy ReconnectPolicy
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Channel maintains at most one live push connection to the backend.
// It dials with the current access token, dispatches pushed events to
// subscribers in arrival order, and reconnects with bounded backoff
// when the connection drops. Open while connecting or connected is a
// no-op; Close is idempotent.
type Channel struct {
	baseURL    string
	socketPath string
	creds      *session.Store
	policy     ReconnectPolicy
	logger     *slog.Logger
	events     *registry

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	cancelRun context.CancelFunc

	writeMu sync.Mutex

	stateMu   sync.Mutex
	stateSubs map[int]func(State)
	nextSub   int
}

// New creates a Channel. It does not connect; call Open.
func New(config Config) (*Channel, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("realtime: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("realtime: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.Credentials == nil {
		return nil, fmt.Errorf("realtime: Credentials store is required")
	}

	socketPath := config.SocketPath
	if socketPath == "" {
		socketPath = "/ws"
	}
	policy := config.Policy.withDefaults()
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		baseURL:    config.BaseURL,
		socketPath: socketPath,
		creds:      config.Credentials,
		policy:     policy,
		logger:     logger,
		events:     newRegistry(),
		state:      StateDisconnected,
		stateSubs:  make(map[int]func(State)),
	}, nil
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a handler for the named pushed event. Handlers
// run on the read goroutine, one event at a time, in arrival order.
// The returned cancel func removes the subscription.
func (c *Channel) Subscribe(event string, handler Handler) func() {
	return c.events.subscribe(event, handler)
}

// SubscribeState registers a callback invoked on every state change.
func (c *Channel) SubscribeState(fn func(State)) func() {
	c.stateMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.stateSubs[id] = fn
	c.stateMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.stateMu.Lock()
			delete(c.stateSubs, id)
			c.stateMu.Unlock()
		})
	}
}

// Open starts the connection loop. A no-op when the channel is already
// connecting or connected. The loop runs until Close, ctx cancellation,
// or the reconnect budget is exhausted.
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	go c.run(runCtx)
}

// Close is the deterministic teardown: it stops the connection loop,
// closes any live connection, and removes every subscription, event
// and state alike. Safe to call more than once and while disconnected.
// A later Open starts clean; the owner re-registers its handlers.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancelRun
	conn := c.conn
	c.cancelRun = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closing")
	}

	c.events.clear()
	c.stateMu.Lock()
	c.stateSubs = make(map[int]func(State))
	c.stateMu.Unlock()
}

// run dials, reads until the connection drops, and reconnects with
// backoff. Consecutive failed dials count against the policy; a
// successful connect resets the count.
func (c *Channel) run(ctx context.Context) {
	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return
			}
			attempt++
			if c.policy.Exhausted(attempt) {
				c.logger.Error("reconnect budget exhausted", "attempts", attempt-1, "error", err)
				c.setState(StateTerminated)
				return
			}
			delay := c.policy.NextDelay(attempt)
			c.logger.Warn("connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			}
		}

		attempt = 0
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)
		c.logger.Info("realtime channel connected")

		readErr := c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.logger.Warn("realtime channel lost", "error", readErr)
		c.setState(StateConnecting)
	}
}

// dial opens one websocket connection with the current access token.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	socketURL, err := c.socketURL()
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	return conn, nil
}

func (c *Channel) socketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = c.socketPath
	query := u.Query()
	query.Set("token", c.creds.Token())
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// readLoop reads frames until the connection fails and dispatches each
// envelope to its subscribers. Single goroutine, so dispatch order is
// arrival order.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if messageType != websocket.MessageText {
			continue
		}
		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Warn("malformed push frame", "error", err)
			continue
		}
		if envelope.Event == "" {
			c.logger.Warn("push frame missing event name")
			continue
		}
		c.events.dispatch(envelope.Event, envelope.Data)
	}
}

// Emit sends one envelope on the live connection. Returns
// ErrNotConnected when there is none; emits are never queued.
func (c *Channel) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("realtime: encode %s envelope: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("realtime: emit %s: %w", event, err)
	}
	return nil
}

// JoinConversation subscribes the connection to a conversation's
// message and typing events.
func (c *Channel) JoinConversation(ctx context.Context, id types.ConversationID) error {
	return c.Emit(ctx, eventJoinConversation, conversationRef{ConversationID: id})
}

// LeaveConversation unsubscribes the connection from a conversation.
func (c *Channel) LeaveConversation(ctx context.Context, id types.ConversationID) error {
	return c.Emit(ctx, eventLeaveConversation, conversationRef{ConversationID: id})
}

// Typing announces that the user is typing in a conversation.
func (c *Channel) Typing(ctx context.Context, id types.ConversationID) error {
	return c.Emit(ctx, eventTyping, conversationRef{ConversationID: id})
}

// StopTyping announces that the user stopped typing.
func (c *Channel) StopTyping(ctx context.Context, id types.ConversationID) error {
	return c.Emit(ctx, eventStopTyping, conversationRef{ConversationID: id})
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.notifyState(state)
}

func (c *Channel) notifyState(state State) {
	c.stateMu.Lock()
	snapshot := make([]func(State), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		snapshot = append(snapshot, fn)
	}
	c.stateMu.Unlock()

	for _, fn := range snapshot {
		fn(state)
	}
}
