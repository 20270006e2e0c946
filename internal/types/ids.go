// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type UserID string
type ConversationID string
type MessageID string
type RequestID string
type NotificationID string

// localPrefix marks message IDs minted on this client before the server
// has confirmed the message and assigned its real ID.
const localPrefix = "local-"

// NewLocalMessageID returns a provisional ID for an optimistically sent
// message. The entry is reconciled against the server-assigned ID once
// the send confirmation arrives.
func NewLocalMessageID() MessageID {
	return MessageID(localPrefix + uuid.New().String())
}

// IsLocal reports whether the ID is a client-local provisional ID.
func (id MessageID) IsLocal() bool {
	return strings.HasPrefix(string(id), localPrefix)
}

// NormalizeUserID canonicalizes a user identity to its trimmed string
// form. Every ingestion boundary (REST results, push events) must pass
// identities through here so that presence and participant comparisons
// are always string-vs-string.
func NormalizeUserID(raw string) UserID {
	return UserID(strings.TrimSpace(raw))
}

func (id UserID) String() string         { return string(id) }
func (id ConversationID) String() string { return string(id) }
func (id MessageID) String() string      { return string(id) }
