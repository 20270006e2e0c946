package window

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/baobao-chat/baochat/internal/chatstate"
	"github.com/baobao-chat/baochat/internal/types"
)

// historyFixture serves pages of fixed timelines, newest-first, the
// way the backend does.
type historyFixture struct {
	mu        sync.Mutex
	timelines map[types.ConversationID][]types.Message // oldest-first
	calls     int
	blockOn   types.ConversationID
	block     chan struct{} // when set, fetches for blockOn wait here
}

func newHistoryFixture(conversationID types.ConversationID, count int) *historyFixture {
	fixture := &historyFixture{timelines: make(map[types.ConversationID][]types.Message)}
	fixture.addTimeline(conversationID, count)
	return fixture
}

func (f *historyFixture) addTimeline(conversationID types.ConversationID, count int) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var timeline []types.Message
	for i := 0; i < count; i++ {
		timeline = append(timeline, types.Message{
			ID:             types.MessageID(fmt.Sprintf("%s-m%03d", conversationID, i)),
			ConversationID: conversationID,
			Sender:         types.UserRef{ID: "peer"},
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.mu.Lock()
	f.timelines[conversationID] = timeline
	f.mu.Unlock()
}

func (f *historyFixture) fetch(ctx context.Context, conversationID types.ConversationID, before types.MessageID, limit int) ([]types.Message, error) {
	f.mu.Lock()
	f.calls++
	timeline := f.timelines[conversationID]
	block := f.block
	blocked := f.blockOn == conversationID
	f.mu.Unlock()
	if block != nil && blocked {
		<-block
	}

	end := len(timeline)
	if before != "" {
		for i, message := range timeline {
			if message.ID == before {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	// Newest-first within the page.
	page := make([]types.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		page = append(page, timeline[i])
	}
	return page, nil
}

// setBlock makes fetches for one conversation wait until unblock.
func (f *historyFixture) setBlock(conversationID types.ConversationID) {
	f.mu.Lock()
	f.blockOn = conversationID
	f.block = make(chan struct{})
	f.mu.Unlock()
}

func (f *historyFixture) unblock() {
	f.mu.Lock()
	block := f.block
	f.block = nil
	f.mu.Unlock()
	if block != nil {
		close(block)
	}
}

func newTestWindow(t *testing.T, fixture *historyFixture) (*Window, *chatstate.Store) {
	t.Helper()
	store := chatstate.New(chatstate.Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{{ID: "c1", Type: types.ConversationDirect}})
	store.Select("c1")

	win, err := New(Config{
		Store:    store,
		Fetch:    fixture.fetch,
		PageSize: 30,
		Height:   func(types.Message) float64 { return 10 },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return win, store
}

func TestLoadInitialFullPageHasMore(t *testing.T) {
	fixture := newHistoryFixture("c1", 100)
	win, store := newTestWindow(t, fixture)
	win.SetViewport(100)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}

	messages := store.Messages()
	if len(messages) != 30 {
		t.Fatalf("loaded %d messages, want 30", len(messages))
	}
	// Oldest-first after the reverse, ending at the live end.
	if messages[0].ID != "c1-m070" || messages[29].ID != "c1-m099" {
		t.Errorf("page bounds = %s..%s, want c1-m070..c1-m099", messages[0].ID, messages[29].ID)
	}
	if !win.HasMore() {
		t.Error("full page should leave HasMore true")
	}
	if !win.AtBottom() {
		t.Error("initial load should land at the live end")
	}
}

func TestLoadInitialShortPageExhaustsHistory(t *testing.T) {
	fixture := newHistoryFixture("c1", 12)
	win, store := newTestWindow(t, fixture)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}

	if len(store.Messages()) != 12 {
		t.Fatalf("loaded %d messages, want 12", len(store.Messages()))
	}
	if win.HasMore() {
		t.Error("short page should leave HasMore false")
	}
}

func TestLoadOlderAnchorsScrollPosition(t *testing.T) {
	fixture := newHistoryFixture("c1", 100)
	win, store := newTestWindow(t, fixture)
	win.SetViewport(100)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}

	// Scroll up to the top edge, then pull an older page in.
	win.SetScrollOffset(0)
	if err := win.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder failed: %v", err)
	}

	messages := store.Messages()
	if len(messages) != 60 {
		t.Fatalf("have %d messages after older page, want 60", len(messages))
	}
	if messages[0].ID != "c1-m040" {
		t.Errorf("oldest loaded = %s, want c1-m040", messages[0].ID)
	}
	// 30 messages of height 10 were inserted above the viewport.
	if got := win.ScrollOffset(); got != 300 {
		t.Errorf("scroll offset = %v, want 300", got)
	}
}

func TestLoadOlderSuppressedWhileInFlight(t *testing.T) {
	fixture := newHistoryFixture("c1", 100)
	win, _ := newTestWindow(t, fixture)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}
	callsAfterInitial := fixture.calls

	fixture.setBlock("c1")
	done := make(chan error, 1)
	go func() { done <- win.LoadOlder(context.Background()) }()

	// Wait for the first LoadOlder to be in flight.
	deadline := time.After(2 * time.Second)
	for {
		fixture.mu.Lock()
		inFlight := fixture.calls > callsAfterInitial
		fixture.mu.Unlock()
		if inFlight {
			break
		}
		select {
		case <-deadline:
			t.Fatal("LoadOlder never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Repeated scroll-to-top while loading must not stack fetches.
	if err := win.LoadOlder(context.Background()); err != nil {
		t.Fatalf("suppressed LoadOlder errored: %v", err)
	}

	fixture.unblock()
	if err := <-done; err != nil {
		t.Fatalf("LoadOlder failed: %v", err)
	}
	if fixture.calls != callsAfterInitial+1 {
		t.Errorf("history fetched %d times, want %d", fixture.calls, callsAfterInitial+1)
	}
}

func TestStalePageDiscardedAfterReselect(t *testing.T) {
	fixture := newHistoryFixture("c1", 100)
	win, store := newTestWindow(t, fixture)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}

	fixture.addTimeline("c2", 5)
	fixture.setBlock("c1")
	done := make(chan error, 1)
	go func() { done <- win.LoadOlder(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	// Switching conversations invalidates the in-flight page.
	store.Select("c2")
	if err := win.LoadInitial(context.Background(), "c2"); err != nil {
		t.Fatalf("LoadInitial for c2 failed: %v", err)
	}

	fixture.unblock()
	if err := <-done; err != nil {
		t.Fatalf("stale LoadOlder errored: %v", err)
	}

	messages := store.Messages()
	if len(messages) != 5 {
		t.Fatalf("have %d messages, want only c2's 5", len(messages))
	}
	for _, message := range messages {
		if message.ConversationID != "c2" {
			t.Errorf("stale page leaked message %s from %s", message.ID, message.ConversationID)
		}
	}
}

func TestNewMessageFollowsWhenAtBottom(t *testing.T) {
	fixture := newHistoryFixture("c1", 40)
	win, store := newTestWindow(t, fixture)
	win.SetViewport(100)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}
	if !win.AtBottom() {
		t.Fatal("expected viewport at the live end")
	}

	arriving := types.Message{ID: "m100", ConversationID: "c1", Sender: types.UserRef{ID: "peer"}, Content: "new"}
	store.AppendMessage(arriving)
	win.HandleNewMessage(arriving)

	if !win.AtBottom() {
		t.Error("viewport should follow the live end")
	}
	if win.UnseenCount() != 0 {
		t.Errorf("unseen = %d at the live end, want 0", win.UnseenCount())
	}
}

func TestNewMessageCountsUnseenWhenScrolledUp(t *testing.T) {
	fixture := newHistoryFixture("c1", 40)
	win, store := newTestWindow(t, fixture)
	win.SetViewport(100)

	if err := win.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}
	win.SetScrollOffset(0)
	offsetBefore := win.ScrollOffset()

	for i := 0; i < 2; i++ {
		arriving := types.Message{
			ID:             types.MessageID(fmt.Sprintf("m10%d", i)),
			ConversationID: "c1",
			Sender:         types.UserRef{ID: "peer"},
			Content:        "new",
		}
		store.AppendMessage(arriving)
		win.HandleNewMessage(arriving)
	}

	if got := win.ScrollOffset(); got != offsetBefore {
		t.Errorf("reading position moved: offset %v, want %v", got, offsetBefore)
	}
	if got := win.UnseenCount(); got != 2 {
		t.Errorf("unseen = %d, want 2", got)
	}

	win.ScrollToBottom()
	if win.UnseenCount() != 0 {
		t.Error("unseen should clear on scroll to bottom")
	}
	if !win.AtBottom() {
		t.Error("expected viewport at the live end")
	}
}
