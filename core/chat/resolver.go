package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

// PeerRef addresses either an existing conversation or a peer user. Exactly
// one field must be set; the caller states which kind of identifier it holds
// instead of the resolver guessing from the string's shape.
type PeerRef struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

func (ref PeerRef) Validate() error {
	set := 0
	if ref.ConversationID != "" {
		set++
	}
	if ref.UserID != "" {
		set++
	}
	if set != 1 {
		return core.NewValidationError(nil, core.FieldError{
			Field: "peer",
			Error: "exactly one of conversation_id or user_id is required",
		})
	}
	return nil
}

// Resolve produces the canonical conversation for a PeerRef on behalf of
// user me. A conversation id is fetched as-is (participants populated for
// display); a peer user id resolves to the existing direct conversation
// between the two users, creating it on first contact. Resolution of the
// same unordered user pair always yields the same conversation.
func (svc *Service) Resolve(ctx context.Context, me string, ref PeerRef) (Conversation, error) {
	if err := ref.Validate(); err != nil {
		return Conversation{}, err
	}

	if ref.ConversationID != "" {
		return svc.GetConversation(ctx, ref.ConversationID, me)
	}

	peer := ref.UserID
	if peer == me {
		return Conversation{}, core.NewValidationError(nil,
			core.FieldError{Field: "user_id", Error: "cannot start a conversation with yourself"})
	}

	conv, err := svc.repo.GetDirectConversation(ctx, me, peer)
	if err == nil {
		return conv, nil
	}
	if errors.Cause(err) != ErrConversationNotFound {
		return Conversation{}, errors.Wrap(err, "looking up direct conversation")
	}

	now := time.Now().UTC()
	conv = Conversation{
		Kind:      KindDirect,
		CreatedAt: now,
		Participants: []Participant{
			{UserID: me, JoinedAt: now},
			{UserID: peer, JoinedAt: now},
		},
	}
	created, err := svc.repo.CreateConversation(ctx, conv)
	if err != nil {
		return Conversation{}, errors.WithMessage(ErrConversationCreate, err.Error())
	}
	svc.notifyFirstContact(ctx, me, peer)
	return created, nil
}
