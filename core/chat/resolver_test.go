package chat_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/chat"
	"github.com/darasahq/darasa/storage/database/dummy"
	testutil "github.com/darasahq/darasa/tests"
)

func setup(t *testing.T) (*chat.Service, chat.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewChatRepository(db)
	svc := chat.NewService(repo, nil, nil, &core.Config{})
	return svc, repo
}

func isValidationError(err error) bool {
	_, ok := errors.Cause(err).(*core.ValidationError)
	return ok
}

func Test_PeerRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     chat.PeerRef
		wantErr bool
	}{
		{name: "conversation id only", ref: chat.PeerRef{ConversationID: "c1"}},
		{name: "user id only", ref: chat.PeerRef{UserID: "u1"}},
		{name: "neither", ref: chat.PeerRef{}, wantErr: true},
		{name: "both", ref: chat.PeerRef{ConversationID: "c1", UserID: "u1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr != (err != nil) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !isValidationError(err) {
				t.Errorf("Validate() error = %T, want *core.ValidationError", err)
			}
		})
	}
}

func Test_Service_Resolve_byUserID(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	conv, err := svc.Resolve(ctx, "alice", chat.PeerRef{UserID: "bob"})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if conv.Kind != chat.KindDirect {
		t.Errorf("conv.Kind = %s, want %s", conv.Kind, chat.KindDirect)
	}
	if !conv.HasParticipant("alice") || !conv.HasParticipant("bob") {
		t.Errorf("conv.Participants = %+v, want alice and bob", conv.Participants)
	}

	// same pair, either direction, resolves to the same conversation
	again, err := svc.Resolve(ctx, "alice", chat.PeerRef{UserID: "bob"})
	if err != nil {
		t.Fatalf("Resolve() second time failed: %v", err)
	}
	if again.ID != conv.ID {
		t.Errorf("second Resolve() ID = %s, want %s", again.ID, conv.ID)
	}
	flipped, err := svc.Resolve(ctx, "bob", chat.PeerRef{UserID: "alice"})
	if err != nil {
		t.Fatalf("Resolve() from peer side failed: %v", err)
	}
	if flipped.ID != conv.ID {
		t.Errorf("peer-side Resolve() ID = %s, want %s", flipped.ID, conv.ID)
	}
}

func Test_Service_Resolve_byConversationID(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	conv := testutil.CreateDirectConversation(t, repo, "alice", "bob")

	got, err := svc.Resolve(ctx, "alice", chat.PeerRef{ConversationID: conv.ID})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got.ID != conv.ID {
		t.Errorf("Resolve() ID = %s, want %s", got.ID, conv.ID)
	}

	// outsiders cannot resolve into a conversation they are not part of
	if _, err = svc.Resolve(ctx, "eve", chat.PeerRef{ConversationID: conv.ID}); errors.Cause(err) != chat.ErrNotParticipant {
		t.Errorf("Resolve() error = %v, want %v", err, chat.ErrNotParticipant)
	}

	if _, err = svc.Resolve(ctx, "alice", chat.PeerRef{ConversationID: "nope"}); errors.Cause(err) != chat.ErrConversationNotFound {
		t.Errorf("Resolve() error = %v, want %v", err, chat.ErrConversationNotFound)
	}
}

func Test_Service_Resolve_selfPeer(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Resolve(context.Background(), "alice", chat.PeerRef{UserID: "alice"})
	if !isValidationError(err) {
		t.Errorf("Resolve() error = %v, want a validation error", err)
	}
}
