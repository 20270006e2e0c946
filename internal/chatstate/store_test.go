package chatstate

import (
	"testing"
	"time"

	"github.com/baobao-chat/baochat/internal/types"
)

func conversationFixture(id types.ConversationID, unread map[types.UserID]int) types.Conversation {
	return types.Conversation{
		ID:   id,
		Type: types.ConversationDirect,
		Participants: []types.Participant{
			{User: types.UserRef{ID: "viewer"}},
			{User: types.UserRef{ID: "peer"}},
		},
		UnreadCounts: unread,
	}
}

func messageFixture(id types.MessageID, conversation types.ConversationID, sender types.UserID, content string) types.Message {
	return types.Message{
		ID:             id,
		ConversationID: conversation,
		Sender:         types.UserRef{ID: sender},
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func TestSelectZeroesUnread(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{
		conversationFixture("c1", map[types.UserID]int{"viewer": 3}),
		conversationFixture("c2", nil),
	})

	store.Select("c1")

	conversation, ok := store.Conversation("c1")
	if !ok {
		t.Fatal("conversation c1 missing")
	}
	if got := conversation.UnreadFor("viewer"); got != 0 {
		t.Errorf("unread after select = %d, want 0", got)
	}
	if store.Selected() != "c1" {
		t.Errorf("selected = %q, want c1", store.Selected())
	}
}

func TestUnreadAccountingFollowsSelection(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{
		conversationFixture("c1", map[types.UserID]int{"viewer": 0}),
		conversationFixture("c2", nil),
	})
	store.Select("c1")

	// A peer message in the selected conversation is already being
	// read: no unread growth.
	store.ApplyLastMessage(messageFixture("m1", "c1", "peer", "hi"))
	conversation, _ := store.Conversation("c1")
	if got := conversation.UnreadFor("viewer"); got != 0 {
		t.Errorf("unread while selected = %d, want 0", got)
	}

	// After switching away, the same kind of message counts.
	store.Select("c2")
	store.ApplyLastMessage(messageFixture("m2", "c1", "peer", "there"))
	conversation, _ = store.Conversation("c1")
	if got := conversation.UnreadFor("viewer"); got != 1 {
		t.Errorf("unread after switching away = %d, want 1", got)
	}

	// The viewer's own message never counts.
	store.ApplyLastMessage(messageFixture("m3", "c1", "viewer", "mine"))
	conversation, _ = store.Conversation("c1")
	if got := conversation.UnreadFor("viewer"); got != 1 {
		t.Errorf("unread after own message = %d, want 1", got)
	}

	if got := store.TotalUnread(); got != 1 {
		t.Errorf("TotalUnread = %d, want 1", got)
	}
}

func TestApplyLastMessageMovesConversationToFront(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{
		conversationFixture("c1", nil),
		conversationFixture("c2", nil),
		conversationFixture("c3", nil),
	})

	store.ApplyLastMessage(messageFixture("m1", "c3", "peer", "newest"))

	conversations := store.Conversations()
	if conversations[0].ID != "c3" {
		t.Errorf("front conversation = %s, want c3", conversations[0].ID)
	}
	if conversations[0].LastMessage == nil || conversations[0].LastMessage.Content != "newest" {
		t.Errorf("sidebar summary not updated: %+v", conversations[0].LastMessage)
	}
}

func TestUpsertConversationDeduplicates(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.UpsertConversation(conversationFixture("c1", nil))
	store.UpsertConversation(conversationFixture("c1", nil))
	store.UpsertConversation(conversationFixture("c2", nil))

	conversations := store.Conversations()
	if len(conversations) != 2 {
		t.Fatalf("have %d conversations, want 2", len(conversations))
	}
	if conversations[0].ID != "c2" {
		t.Errorf("new conversation not prepended: front is %s", conversations[0].ID)
	}
}

func TestAppendMessageDeduplicatesByID(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	store.Select("c1")

	message := messageFixture("m1", "c1", "peer", "hi")
	store.AppendMessage(message)
	store.AppendMessage(message) // push duplicate

	if got := len(store.Messages()); got != 1 {
		t.Errorf("have %d messages, want 1", got)
	}

	// Messages for other conversations are ignored.
	store.AppendMessage(messageFixture("m2", "c-other", "peer", "elsewhere"))
	if got := len(store.Messages()); got != 1 {
		t.Errorf("foreign message appended; have %d messages", got)
	}
}

func TestPrependMessagesSkipsKnownIDs(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	store.Select("c1")
	store.SetMessages("c1", []types.Message{
		messageFixture("m3", "c1", "peer", "three"),
		messageFixture("m4", "c1", "peer", "four"),
	})

	store.PrependMessages("c1", []types.Message{
		messageFixture("m1", "c1", "peer", "one"),
		messageFixture("m2", "c1", "peer", "two"),
		messageFixture("m3", "c1", "peer", "three"), // overlap with loaded page
	})

	messages := store.Messages()
	wantOrder := []types.MessageID{"m1", "m2", "m3", "m4"}
	if len(messages) != len(wantOrder) {
		t.Fatalf("have %d messages, want %d", len(messages), len(wantOrder))
	}
	for i, want := range wantOrder {
		if messages[i].ID != want {
			t.Errorf("messages[%d] = %s, want %s", i, messages[i].ID, want)
		}
	}
}

func TestReconcileLocalReplacesInPlace(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	store.Select("c1")

	localID := types.NewLocalMessageID()
	store.AppendMessage(messageFixture("m1", "c1", "peer", "before"))
	store.AppendMessage(messageFixture(localID, "c1", "viewer", "sending"))

	confirmed := messageFixture("m2", "c1", "viewer", "sending")
	store.ReconcileLocal(localID, confirmed)

	messages := store.Messages()
	if len(messages) != 2 {
		t.Fatalf("have %d messages, want 2", len(messages))
	}
	if messages[1].ID != "m2" {
		t.Errorf("confirmed message ID = %s, want m2", messages[1].ID)
	}
	if messages[1].ID.IsLocal() {
		t.Error("local ID survived reconciliation")
	}
}

func TestReconcileLocalDropsDuplicateWhenPushWon(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	store.Select("c1")

	localID := types.NewLocalMessageID()
	store.AppendMessage(messageFixture(localID, "c1", "viewer", "sending"))
	// The push with the confirmed ID arrives before the send response.
	store.AppendMessage(messageFixture("m1", "c1", "viewer", "sending"))

	store.ReconcileLocal(localID, messageFixture("m1", "c1", "viewer", "sending"))

	messages := store.Messages()
	if len(messages) != 1 {
		t.Fatalf("have %d messages, want 1", len(messages))
	}
	if messages[0].ID != "m1" {
		t.Errorf("surviving ID = %s, want m1", messages[0].ID)
	}
}

func TestApplyRecallKeepsEntryDropsContent(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	store.Select("c1")
	store.AppendMessage(messageFixture("m1", "c1", "peer", "secret"))

	store.ApplyRecall("m1")

	messages := store.Messages()
	if len(messages) != 1 {
		t.Fatalf("recalled message removed from timeline")
	}
	if !messages[0].Recalled || messages[0].Content != "" {
		t.Errorf("recall not applied: %+v", messages[0])
	}
}

func TestResetClearsEverything(t *testing.T) {
	store := New(Config{Viewer: "viewer"})
	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	store.Select("c1")
	store.AppendMessage(messageFixture("m1", "c1", "peer", "hi"))
	store.SetOnlineUsers([]types.UserID{"peer"})
	store.AddNotification(types.Notification{ID: "n1"})

	store.Reset()

	if len(store.Conversations()) != 0 || len(store.Messages()) != 0 {
		t.Error("chat state survived reset")
	}
	if store.Selected() != "" || store.Viewer() != "" {
		t.Error("selection or viewer survived reset")
	}
	if store.IsOnline("peer") || len(store.Notifications()) != 0 {
		t.Error("presence or notifications survived reset")
	}
}

func TestSubscribeSignalsOnChange(t *testing.T) {
	store := New(Config{Viewer: "viewer"})

	changes := 0
	cancel := store.Subscribe(func() { changes++ })

	store.SetConversations([]types.Conversation{conversationFixture("c1", nil)})
	if changes != 1 {
		t.Errorf("changes = %d after one mutation, want 1", changes)
	}

	cancel()
	store.SetConversations(nil)
	if changes != 1 {
		t.Errorf("subscriber fired after cancel")
	}
}
