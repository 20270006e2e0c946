// internal/types/models.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the full profile of the signed-in user.
type User struct {
	ID          UserID    `json:"_id"`
	UserName    string    `json:"user_name"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatarURL,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Status      string    `json:"status,omitempty"`
	LastSeen    time.Time `json:"lastSeen,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// UserRef is a reference to a user that different endpoints deliver in
// different shapes: either a bare ID string or a populated profile
// object. Unmarshalling accepts both and always normalizes the ID, so
// identity comparisons downstream are string-vs-string regardless of
// which endpoint produced the value.
type UserRef struct {
	ID          UserID
	UserName    string
	DisplayName string
	AvatarURL   string
	Status      string
	LastSeen    time.Time
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = UserRef{ID: NormalizeUserID(id)}
		return nil
	}

	var profile struct {
		ID          string    `json:"_id"`
		UserName    string    `json:"user_name"`
		DisplayName string    `json:"display_name"`
		AvatarURL   string    `json:"avatarURL"`
		Status      string    `json:"status"`
		LastSeen    time.Time `json:"lastSeen"`
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("user ref is neither id string nor profile object: %w", err)
	}
	*r = UserRef{
		ID:          NormalizeUserID(profile.ID),
		UserName:    profile.UserName,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Status:      profile.Status,
		LastSeen:    profile.LastSeen,
	}
	return nil
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	// References are always emitted as bare IDs; the populated form only
	// ever travels server -> client.
	return json.Marshal(string(r.ID))
}

// Name returns the best display string available for the reference.
func (r UserRef) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.UserName != "" {
		return r.UserName
	}
	return string(r.ID)
}

// Participant is a conversation member.
type Participant struct {
	User     UserRef   `json:"userId"`
	JoinedAt time.Time `json:"joinedAt,omitempty"`
}

// Group carries group-conversation metadata.
type Group struct {
	Name      string `json:"name,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
	AvatarURL string `json:"groupAvatar,omitempty"`
}

// LastMessage is the sidebar summary of a conversation's newest message.
type LastMessage struct {
	ID        MessageID `json:"_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	SenderID  UserID    `json:"senderId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Conversation types.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

type Conversation struct {
	ID            ConversationID `json:"_id"`
	Type          string         `json:"type"`
	Participants  []Participant  `json:"participants"`
	Group         *Group         `json:"group,omitempty"`
	LastMessage   *LastMessage   `json:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"lastMessageAt,omitempty"`
	UnreadCounts  map[UserID]int `json:"unreadCounts,omitempty"`
	CreatedAt     time.Time      `json:"createdAt,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt,omitempty"`
}

// HasParticipant reports whether the user is a member, comparing by
// normalized ID.
func (c *Conversation) HasParticipant(id UserID) bool {
	for _, p := range c.Participants {
		if p.User.ID == id {
			return true
		}
	}
	return false
}

// UnreadFor returns the unread count for the given user.
func (c *Conversation) UnreadFor(id UserID) int {
	return c.UnreadCounts[id]
}

type Reaction struct {
	UserID    UserID    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Message struct {
	ID             MessageID      `json:"_id"`
	ConversationID ConversationID `json:"conversationId"`
	Sender         UserRef        `json:"senderId"`
	Content        string         `json:"content,omitempty"`
	ImageURL       string         `json:"imgUrl,omitempty"`
	Recalled       bool           `json:"isRecall"`
	Reactions      []Reaction     `json:"reactions,omitempty"`
	ReplyTo        MessageID      `json:"replyTo,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt,omitempty"`
}

// FriendRequest lifecycle states mirror the server's.
type FriendRequest struct {
	ID        RequestID `json:"_id"`
	From      UserRef   `json:"from"`
	To        UserRef   `json:"to"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type Notification struct {
	ID        NotificationID `json:"_id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
}
