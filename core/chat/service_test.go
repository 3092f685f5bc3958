package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/chat"
	testutil "github.com/darasahq/darasa/tests"
)

func Test_Service_CreateMessage(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	conv := testutil.CreateDirectConversation(t, repo, "alice", "bob")
	other := testutil.CreateDirectConversation(t, repo, "alice", "carol")
	target := testutil.CreateMessage(t, repo, conv.ID, "bob", "original")
	foreign := testutil.CreateMessage(t, repo, other.ID, "carol", "elsewhere")

	attachment := &chat.AttachmentRef{URL: "memory://x", Name: "x.png", Size: 1, ContentType: "image/png"}

	tests := []struct {
		name     string
		nm       chat.NewMessage
		wantErr  error
		wantVErr bool
		wantKind string
	}{
		{
			name:     "text message",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Content: "hi"},
			wantKind: chat.MessageKindText,
		},
		{
			name:     "attachment only",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Attachment: attachment},
			wantKind: chat.MessageKindAttachment,
		},
		{
			name:     "whitespace content with attachment",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Content: "   ", Attachment: attachment},
			wantKind: chat.MessageKindAttachment,
		},
		{
			name:     "reply",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Content: "re", ReplyToID: target.ID},
			wantKind: chat.MessageKindText,
		},
		{
			name:     "empty",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice"},
			wantVErr: true,
		},
		{
			name:     "whitespace only",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Content: "  \t "},
			wantVErr: true,
		},
		{
			name:    "unknown conversation",
			nm:      chat.NewMessage{ConversationID: "nope", SenderID: "alice", Content: "hi"},
			wantErr: chat.ErrConversationNotFound,
		},
		{
			name:    "non-participant sender",
			nm:      chat.NewMessage{ConversationID: conv.ID, SenderID: "eve", Content: "hi"},
			wantErr: chat.ErrNotParticipant,
		},
		{
			name:    "unknown reply target",
			nm:      chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Content: "re", ReplyToID: "nope"},
			wantErr: chat.ErrMessageNotFound,
		},
		{
			name:     "reply target in another conversation",
			nm:       chat.NewMessage{ConversationID: conv.ID, SenderID: "alice", Content: "re", ReplyToID: foreign.ID},
			wantVErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := svc.CreateMessage(ctx, tt.nm)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("CreateMessage() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if tt.wantVErr {
				if !isValidationError(err) {
					t.Errorf("CreateMessage() error = %v, want a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateMessage() failed: %v", err)
			}
			if msg.ID == "" {
				t.Error("CreateMessage() did not assign an identifier")
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("msg.Kind = %s, want %s", msg.Kind, tt.wantKind)
			}
			if msg.CreatedAt.IsZero() || msg.CreatedAt.Location() != time.UTC {
				t.Errorf("msg.CreatedAt = %v, want a UTC timestamp", msg.CreatedAt)
			}
		})
	}
}

func Test_Service_FetchMessages(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	conv := testutil.CreateDirectConversation(t, repo, "alice", "bob")

	base := time.Now().Add(-time.Hour)
	m1 := testutil.CreateMessage(t, repo, conv.ID, "alice", "one", base)
	m2 := testutil.CreateMessage(t, repo, conv.ID, "bob", "two", base.Add(time.Minute))
	m3 := testutil.CreateMessage(t, repo, conv.ID, "alice", "three", base.Add(2*time.Minute))

	// newest first
	msgs, err := svc.FetchMessages(ctx, conv.ID, 0, 0)
	if err != nil {
		t.Fatalf("FetchMessages() failed: %v", err)
	}
	if len(msgs) != 3 || msgs[0].ID != m3.ID || msgs[1].ID != m2.ID || msgs[2].ID != m1.ID {
		t.Errorf("FetchMessages() = %+v, want [three two one]", msgs)
	}

	// window
	msgs, err = svc.FetchMessages(ctx, conv.ID, 1, 1)
	if err != nil {
		t.Fatalf("FetchMessages() failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != m2.ID {
		t.Errorf("FetchMessages(1, 1) = %+v, want [two]", msgs)
	}

	// offset past the end
	msgs, err = svc.FetchMessages(ctx, conv.ID, 10, 99)
	if err != nil {
		t.Fatalf("FetchMessages() failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("FetchMessages(10, 99) returned %d messages, want 0", len(msgs))
	}

	// negative offset is treated as 0
	msgs, err = svc.FetchMessages(ctx, conv.ID, 10, -3)
	if err != nil {
		t.Fatalf("FetchMessages() failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Errorf("FetchMessages(10, -3) returned %d messages, want 3", len(msgs))
	}
}

func Test_Service_Conversations(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	conv1 := testutil.CreateDirectConversation(t, repo, "alice", "bob")
	conv2 := testutil.CreateDirectConversation(t, repo, "alice", "carol")
	testutil.CreateDirectConversation(t, repo, "bob", "carol") // not alice's

	last := testutil.CreateMessage(t, repo, conv1.ID, "bob", "latest")

	summaries, err := svc.Conversations(ctx, "alice")
	if err != nil {
		t.Fatalf("Conversations() failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Conversations() returned %d summaries, want 2", len(summaries))
	}
	for _, summary := range summaries {
		switch summary.ID {
		case conv1.ID:
			if summary.LastMessage == nil || summary.LastMessage.ID != last.ID {
				t.Errorf("conv1 LastMessage = %+v, want %s", summary.LastMessage, last.ID)
			}
		case conv2.ID:
			if summary.LastMessage != nil {
				t.Errorf("conv2 LastMessage = %+v, want nil", summary.LastMessage)
			}
		default:
			t.Errorf("unexpected conversation %s in summaries", summary.ID)
		}
	}
}

func Test_Service_GetConversation(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	conv := testutil.CreateDirectConversation(t, repo, "alice", "bob")

	got, err := svc.GetConversation(ctx, conv.ID, "alice")
	if err != nil {
		t.Fatalf("GetConversation() failed: %v", err)
	}
	if got.ID != conv.ID {
		t.Errorf("GetConversation() ID = %s, want %s", got.ID, conv.ID)
	}

	if _, err = svc.GetConversation(ctx, conv.ID, "eve"); errors.Cause(err) != chat.ErrNotParticipant {
		t.Errorf("GetConversation() error = %v, want %v", err, chat.ErrNotParticipant)
	}
	if _, err = svc.GetConversation(ctx, "nope", "alice"); errors.Cause(err) != chat.ErrConversationNotFound {
		t.Errorf("GetConversation() error = %v, want %v", err, chat.ErrConversationNotFound)
	}
}
