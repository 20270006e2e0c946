package window

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/baobao-chat/baochat/internal/chatstate"
	"github.com/baobao-chat/baochat/internal/types"
)

const (
	defaultPageSize        = 30
	defaultBottomTolerance = 50
	defaultMessageHeight   = 48
)

// FetchFunc loads one page of history for a conversation, newest-first.
// A zero before cursor means the live end.
type FetchFunc func(ctx context.Context, conversationID types.ConversationID, before types.MessageID, limit int) ([]types.Message, error)

// HeightFunc estimates the rendered height of one message. Used to keep
// the viewport anchored when older pages are inserted above it.
type HeightFunc func(message types.Message) float64

// Config holds configuration for creating a Window.
type Config struct {
	// Store receives the loaded pages.
	Store *chatstate.Store
	// Fetch loads history pages.
	Fetch FetchFunc
	// PageSize is the history page size. Defaults to 30.
	PageSize int
	// BottomTolerance is how close to the bottom edge, in height units,
	// still counts as "at the bottom". Defaults to 50.
	BottomTolerance float64
	// Height estimates message heights. Defaults to a flat estimate.
	Height HeightFunc
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Window manages the visible slice of one conversation's history: which
// pages are loaded, where the viewport sits, and whether the user is at
// the live end. Older pages load through a before-ID cursor, so the page
// boundary stays correct while new messages arrive. When a page is
// inserted above the viewport the scroll offset grows by the inserted
// height, keeping what the user was reading fixed in place.
type Window struct {
	store  *chatstate.Store
	fetch  FetchFunc
	logger *slog.Logger

	pageSize  int
	tolerance float64
	height    HeightFunc

	mu           sync.Mutex
	conversation types.ConversationID
	generation   uint64
	loading      bool
	hasMore      bool
	offset       float64
	viewport     float64
	unseen       int
}

// New creates a Window.
func New(config Config) (*Window, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("window: Store is required")
	}
	if config.Fetch == nil {
		return nil, fmt.Errorf("window: Fetch is required")
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	tolerance := config.BottomTolerance
	if tolerance <= 0 {
		tolerance = defaultBottomTolerance
	}
	height := config.Height
	if height == nil {
		height = func(types.Message) float64 { return defaultMessageHeight }
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{
		store:     config.Store,
		fetch:     config.Fetch,
		logger:    logger,
		pageSize:  pageSize,
		tolerance: tolerance,
		height:    height,
	}, nil
}

// LoadInitial loads the newest page for the conversation and scrolls to
// the live end. Any in-flight load for a previous conversation is
// invalidated.
func (w *Window) LoadInitial(ctx context.Context, conversationID types.ConversationID) error {
	w.mu.Lock()
	w.conversation = conversationID
	w.generation++
	generation := w.generation
	w.loading = true
	w.hasMore = false
	w.offset = 0
	w.unseen = 0
	w.mu.Unlock()

	page, err := w.fetch(ctx, conversationID, "", w.pageSize)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != generation {
		// The user moved on while this page was in flight.
		return nil
	}
	w.loading = false
	if err != nil {
		return fmt.Errorf("window: load initial page: %w", err)
	}

	w.store.SetMessages(conversationID, reverse(page))
	w.hasMore = len(page) == w.pageSize
	w.offset = w.bottomOffsetLocked()
	return nil
}

// LoadOlder loads the page before the oldest loaded message and inserts
// it above the viewport, growing the scroll offset by the inserted
// height so the view does not jump. A no-op while a load is in flight
// or when history is exhausted.
func (w *Window) LoadOlder(ctx context.Context) error {
	w.mu.Lock()
	if w.loading || !w.hasMore || w.conversation == "" {
		w.mu.Unlock()
		return nil
	}
	conversationID := w.conversation
	generation := w.generation
	w.loading = true
	w.mu.Unlock()

	oldest := w.oldestLoadedID()
	page, err := w.fetch(ctx, conversationID, oldest, w.pageSize)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != generation {
		return nil
	}
	w.loading = false
	if err != nil {
		return fmt.Errorf("window: load older page: %w", err)
	}

	older := reverse(page)
	known := w.knownIDs()
	var inserted float64
	fresh := make([]types.Message, 0, len(older))
	for _, message := range older {
		if _, ok := known[message.ID]; ok {
			continue
		}
		fresh = append(fresh, message)
		inserted += w.height(message)
	}
	w.store.PrependMessages(conversationID, fresh)
	w.offset += inserted
	w.hasMore = len(page) == w.pageSize
	return nil
}

func (w *Window) oldestLoadedID() types.MessageID {
	messages := w.store.Messages()
	if len(messages) == 0 {
		return ""
	}
	return messages[0].ID
}

func (w *Window) knownIDs() map[types.MessageID]struct{} {
	messages := w.store.Messages()
	ids := make(map[types.MessageID]struct{}, len(messages))
	for _, message := range messages {
		ids[message.ID] = struct{}{}
	}
	return ids
}

// SetViewport records the visible height.
func (w *Window) SetViewport(height float64) {
	w.mu.Lock()
	w.viewport = height
	w.mu.Unlock()
}

// SetScrollOffset records the scroll position reported by the UI. When
// the user reaches the live end the unseen counter clears.
func (w *Window) SetScrollOffset(offset float64) {
	w.mu.Lock()
	w.offset = offset
	if w.atBottomLocked() {
		w.unseen = 0
	}
	w.mu.Unlock()
}

// ScrollOffset returns the current scroll position.
func (w *Window) ScrollOffset() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

// AtBottom reports whether the viewport is within tolerance of the live
// end.
func (w *Window) AtBottom() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.atBottomLocked()
}

func (w *Window) atBottomLocked() bool {
	return w.contentHeightLocked()-(w.offset+w.viewport) <= w.tolerance
}

func (w *Window) contentHeightLocked() float64 {
	var total float64
	for _, message := range w.store.Messages() {
		total += w.height(message)
	}
	return total
}

func (w *Window) bottomOffsetLocked() float64 {
	offset := w.contentHeightLocked() - w.viewport
	if offset < 0 {
		return 0
	}
	return offset
}

// ContentHeight returns the estimated height of all loaded messages.
func (w *Window) ContentHeight() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.contentHeightLocked()
}

// ScrollToBottom jumps to the live end and clears the unseen counter.
func (w *Window) ScrollToBottom() {
	w.mu.Lock()
	w.offset = w.bottomOffsetLocked()
	w.unseen = 0
	w.mu.Unlock()
}

// HandleNewMessage reacts to a message appended at the live end: a
// viewer already at the bottom follows it down, anyone scrolled up into
// history keeps their place and the unseen counter grows instead.
func (w *Window) HandleNewMessage(message types.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conversation != message.ConversationID {
		return
	}
	// Judge the position as it was before this message grew the content.
	wasAtBottom := w.contentHeightLocked()-w.height(message)-(w.offset+w.viewport) <= w.tolerance
	if wasAtBottom {
		w.offset = w.bottomOffsetLocked()
		w.unseen = 0
		return
	}
	w.unseen++
}

// UnseenCount returns how many messages arrived while scrolled up.
func (w *Window) UnseenCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unseen
}

// HasMore reports whether older history remains.
func (w *Window) HasMore() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasMore
}

// Loading reports whether a page load is in flight.
func (w *Window) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading
}

// reverse flips a newest-first page into timeline order.
func reverse(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, message := range messages {
		out[len(messages)-1-i] = message
	}
	return out
}
