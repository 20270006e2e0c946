package chatstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/baobao-chat/baochat/internal/types"
)

const defaultTypingTTL = 6 * time.Second

// Config holds configuration for creating a Store.
type Config struct {
	// Viewer is the signed-in user. May be set later via SetViewer.
	Viewer types.UserID
	// TypingTTL bounds how long a typing indicator stays lit without a
	// stop event. Defaults to 6s.
	TypingTTL time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Store is the canonical client-side chat state: conversations, the
// selected conversation's messages, presence, typing, friends, and
// notifications. Every mutation happens under one lock and fires the
// change signal, so readers always observe a consistent snapshot.
//
// Messages are held for the selected conversation only, ordered
// oldest-first. Entries are deduplicated by ID: a message can arrive
// twice (push plus send-confirmation, or push plus page fetch) but is
// stored once.
type Store struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	typingTTL time.Duration

	viewer        types.UserID
	conversations []types.Conversation
	selected      types.ConversationID
	messages      []types.Message

	online   map[types.UserID]struct{}
	statuses map[types.UserID]userStatus
	typing   map[types.ConversationID]map[types.UserID]*time.Timer

	friends          []types.User
	sentRequests     []types.FriendRequest
	receivedRequests []types.FriendRequest
	notifications    []types.Notification

	subscribers map[int]func()
	nextSub     int
}

type userStatus struct {
	status   string
	lastSeen time.Time
}

// New creates an empty Store.
func New(config Config) *Store {
	typingTTL := config.TypingTTL
	if typingTTL <= 0 {
		typingTTL = defaultTypingTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:      logger,
		typingTTL:   typingTTL,
		viewer:      config.Viewer,
		online:      make(map[types.UserID]struct{}),
		statuses:    make(map[types.UserID]userStatus),
		typing:      make(map[types.ConversationID]map[types.UserID]*time.Timer),
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers a callback fired after every state change. The
// returned cancel func removes the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	snapshot := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		snapshot = append(snapshot, fn)
	}
	s.mu.RUnlock()

	for _, fn := range snapshot {
		fn()
	}
}

// SetViewer records the signed-in user's ID. Unread accounting and
// typing suppression key off it.
func (s *Store) SetViewer(id types.UserID) {
	s.mu.Lock()
	s.viewer = id
	s.mu.Unlock()
	s.notify()
}

// Viewer returns the signed-in user's ID.
func (s *Store) Viewer() types.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer
}

// Reset wipes all chat state. Sign-out lands here.
func (s *Store) Reset() {
	s.mu.Lock()
	for _, timers := range s.typing {
		for _, timer := range timers {
			timer.Stop()
		}
	}
	s.viewer = ""
	s.conversations = nil
	s.selected = ""
	s.messages = nil
	s.online = make(map[types.UserID]struct{})
	s.statuses = make(map[types.UserID]userStatus)
	s.typing = make(map[types.ConversationID]map[types.UserID]*time.Timer)
	s.friends = nil
	s.sentRequests = nil
	s.receivedRequests = nil
	s.notifications = nil
	s.mu.Unlock()
	s.notify()
}

// --- conversations ---

// SetConversations replaces the conversation list, preserving the
// server's ordering.
func (s *Store) SetConversations(conversations []types.Conversation) {
	s.mu.Lock()
	s.conversations = append([]types.Conversation(nil), conversations...)
	s.mu.Unlock()
	s.notify()
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() []types.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Conversation(nil), s.conversations...)
}

// Conversation returns the conversation by ID.
func (s *Store) Conversation(id types.ConversationID) (types.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conversation := range s.conversations {
		if conversation.ID == id {
			return conversation, true
		}
	}
	return types.Conversation{}, false
}

// UpsertConversation replaces the conversation in place when known, and
// prepends it when new. Pushed new-conversation and conversation-updated
// events both land here, so a duplicate push never produces a duplicate
// sidebar entry.
func (s *Store) UpsertConversation(conversation types.Conversation) {
	s.mu.Lock()
	replaced := false
	for i := range s.conversations {
		if s.conversations[i].ID == conversation.ID {
			s.conversations[i] = conversation
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append([]types.Conversation{conversation}, s.conversations...)
	}
	s.mu.Unlock()
	s.notify()
}

// RemoveConversation drops the conversation; if it was selected, the
// selection and its messages are cleared too.
func (s *Store) RemoveConversation(id types.ConversationID) {
	s.mu.Lock()
	kept := s.conversations[:0]
	for _, conversation := range s.conversations {
		if conversation.ID != id {
			kept = append(kept, conversation)
		}
	}
	s.conversations = kept
	if s.selected == id {
		s.selected = ""
		s.messages = nil
	}
	s.mu.Unlock()
	s.notify()
}

// Select makes the conversation current: previous messages are cleared
// for the new conversation's page load, and the viewer's unread counter
// is zeroed immediately rather than waiting for the server round trip.
func (s *Store) Select(id types.ConversationID) {
	s.mu.Lock()
	s.selected = id
	s.messages = nil
	s.zeroUnreadLocked(id)
	s.mu.Unlock()
	s.notify()
}

// Deselect clears the selection and its messages.
func (s *Store) Deselect() {
	s.mu.Lock()
	s.selected = ""
	s.messages = nil
	s.mu.Unlock()
	s.notify()
}

// Selected returns the current conversation ID, or "".
func (s *Store) Selected() types.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// MarkConversationRead zeroes the viewer's unread counter.
func (s *Store) MarkConversationRead(id types.ConversationID) {
	s.mu.Lock()
	s.zeroUnreadLocked(id)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) zeroUnreadLocked(id types.ConversationID) {
	for i := range s.conversations {
		if s.conversations[i].ID != id {
			continue
		}
		if s.conversations[i].UnreadCounts != nil {
			s.conversations[i].UnreadCounts[s.viewer] = 0
		}
		return
	}
}

// TotalUnread sums the viewer's unread counters across conversations.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, conversation := range s.conversations {
		total += conversation.UnreadFor(s.viewer)
	}
	return total
}

// --- messages ---

// Messages returns a copy of the selected conversation's messages,
// oldest-first.
func (s *Store) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Message(nil), s.messages...)
}

// SetMessages replaces the message list for the selected conversation.
func (s *Store) SetMessages(conversationID types.ConversationID, messages []types.Message) {
	s.mu.Lock()
	if s.selected != conversationID {
		s.mu.Unlock()
		return
	}
	s.messages = append([]types.Message(nil), messages...)
	s.mu.Unlock()
	s.notify()
}

// AppendMessage adds a message at the live end. Messages for other
// conversations and IDs already present are ignored.
func (s *Store) AppendMessage(message types.Message) {
	s.mu.Lock()
	if s.selected != message.ConversationID || s.indexOfLocked(message.ID) >= 0 {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	s.notify()
}

// PrependMessages adds an older page before the existing messages,
// keeping their order and skipping IDs already present.
func (s *Store) PrependMessages(conversationID types.ConversationID, older []types.Message) {
	s.mu.Lock()
	if s.selected != conversationID {
		s.mu.Unlock()
		return
	}
	fresh := make([]types.Message, 0, len(older))
	for _, message := range older {
		if s.indexOfLocked(message.ID) < 0 {
			fresh = append(fresh, message)
		}
	}
	s.messages = append(fresh, s.messages...)
	s.mu.Unlock()
	s.notify()
}

// UpdateMessage replaces a message in place, matched by ID. Edits and
// reaction updates land here.
func (s *Store) UpdateMessage(message types.Message) {
	s.mu.Lock()
	i := s.indexOfLocked(message.ID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[i] = message
	s.mu.Unlock()
	s.notify()
}

// ApplyRecall marks the message recalled and drops its content. The
// entry stays in the timeline.
func (s *Store) ApplyRecall(id types.MessageID) {
	s.mu.Lock()
	i := s.indexOfLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[i].Recalled = true
	s.messages[i].Content = ""
	s.messages[i].ImageURL = ""
	s.mu.Unlock()
	s.notify()
}

// ReconcileLocal replaces the optimistic entry with the server's
// confirmed copy, keeping its timeline position. If the confirmed ID
// already arrived by push, the optimistic entry is dropped instead.
func (s *Store) ReconcileLocal(localID types.MessageID, confirmed types.Message) {
	s.mu.Lock()
	local := s.indexOfLocked(localID)
	if local < 0 {
		s.mu.Unlock()
		return
	}
	if s.indexOfLocked(confirmed.ID) >= 0 {
		s.messages = append(s.messages[:local], s.messages[local+1:]...)
	} else {
		s.messages[local] = confirmed
	}
	s.mu.Unlock()
	s.notify()
}

// DropLocal removes a failed optimistic entry.
func (s *Store) DropLocal(localID types.MessageID) {
	s.mu.Lock()
	i := s.indexOfLocked(localID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) indexOfLocked(id types.MessageID) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// ApplyLastMessage updates the sidebar for a new message anywhere: the
// conversation's summary moves to the front, and the viewer's unread
// counter grows only when the message is someone else's and lands in a
// conversation the viewer is not looking at.
func (s *Store) ApplyLastMessage(message types.Message) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID != message.ConversationID {
			continue
		}
		conversation := s.conversations[i]
		conversation.LastMessage = &types.LastMessage{
			ID:        message.ID,
			Content:   message.Content,
			SenderID:  message.Sender.ID,
			CreatedAt: message.CreatedAt,
		}
		conversation.LastMessageAt = message.CreatedAt
		if message.Sender.ID != s.viewer && s.selected != message.ConversationID {
			if conversation.UnreadCounts == nil {
				conversation.UnreadCounts = make(map[types.UserID]int)
			}
			conversation.UnreadCounts[s.viewer]++
		}
		s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
		s.conversations = append([]types.Conversation{conversation}, s.conversations...)
		break
	}
	s.mu.Unlock()
	s.notify()
}
