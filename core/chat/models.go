package chat

import (
	"context"
	"io"
	"time"
)

// Conversation kinds
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Message kinds
const (
	MessageKindText       = "text"
	MessageKindAttachment = "attachment"
)

type (
	// Conversation is a channel between two or more participants holding an
	// ordered message history. Direct conversations have exactly two distinct
	// participants and are keyed by DirectKey for idempotent creation.
	Conversation struct {
		ID           string        `json:"id"`
		Kind         string        `json:"kind"`
		Title        string        `json:"title,omitempty"`
		Description  string        `json:"description,omitempty"`
		Participants []Participant `json:"participants"`
		CreatedAt    time.Time     `json:"created_at"` // UTC
	}

	// Participant is the (conversation, user) membership join.
	Participant struct {
		ConversationID string    `json:"conversation_id"`
		UserID         string    `json:"user_id"`
		JoinedAt       time.Time `json:"joined_at"` // UTC
	}

	// ConversationSummary decorates a conversation with its latest message
	// for list views.
	ConversationSummary struct {
		Conversation
		LastMessage *Message `json:"last_message,omitempty"`
	}

	// AttachmentRef is the stable reference an upload resolves to; it is all
	// a message carries about its attachment.
	AttachmentRef struct {
		URL         string `json:"url"`
		Name        string `json:"name"`
		Size        int64  `json:"size"`
		ContentType string `json:"content_type"`
	}

	// Message is immutable once created; the store assigns its identity and
	// messages within a conversation are totally ordered by (CreatedAt, ID).
	Message struct {
		ID             string         `json:"id"`
		ConversationID string         `json:"conversation_id"`
		SenderID       string         `json:"sender_id"`
		Content        string         `json:"content,omitempty"` // empty if attachment-only
		Attachment     *AttachmentRef `json:"attachment,omitempty"`
		ReplyToID      string         `json:"reply_to_id,omitempty"`
		Kind           string         `json:"kind"`
		CreatedAt      time.Time      `json:"created_at"` // UTC
	}

	// NewMessage contains information needed to create a Message.
	NewMessage struct {
		ConversationID string         `json:"conversation_id" validate:"required"`
		SenderID       string         `json:"-"`
		Content        string         `json:"content"`
		Attachment     *AttachmentRef `json:"attachment,omitempty"`
		ReplyToID      string         `json:"reply_to_id,omitempty"`
	}

	// Upload is a file payload headed for attachment storage.
	Upload struct {
		Name        string
		ContentType string
		Size        int64
		Body        io.Reader
	}

	// Uploader stores a file and returns a stable reference to it. A single
	// whole-payload attempt; callers block on the result before building the
	// message that references it.
	Uploader interface {
		Upload(ctx context.Context, conversationID string, up Upload) (AttachmentRef, error)
	}
)

// DirectKey returns the canonical key for the unordered pair of direct
// conversation participants.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant of a direct conversation.
func (c *Conversation) Peer(userID string) (Participant, bool) {
	if c.Kind != KindDirect {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Before reports whether m sorts before other in a conversation's history:
// by creation time, ties broken by identifier.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
