package chat

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("user is not a participant in this conversation")

	// ErrConversationCreate means resolution failed at the creation step; the
	// caller must not open a sync engine for the conversation.
	ErrConversationCreate = errors.New("conversation could not be created")
	// ErrMessageSend is surfaced to the sender; the local view is untouched.
	ErrMessageSend = errors.New("message could not be sent")
	// ErrMessageFetch is transient; the poll loop logs it and waits for the
	// next tick.
	ErrMessageFetch = errors.New("messages could not be fetched")
	// ErrUpload aborts a send before the message payload is built.
	ErrUpload = errors.New("attachment upload failed")
)

// Message page bounds, applied to fetches regardless of what the client asks
// for.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type (
	Repository interface {
		// CreateConversation persists a conversation with its participants.
		// For direct conversations creation is idempotent on the unordered
		// participant pair: a concurrent or repeated create returns the
		// already-existing conversation.
		CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
		GetConversationByID(ctx context.Context, id string) (Conversation, error)
		GetDirectConversation(ctx context.Context, userA, userB string) (Conversation, error)
		QueryConversationsByParticipant(ctx context.Context, userID string) ([]ConversationSummary, error)
		// CreateMessage assigns the message identifier; the store serializes
		// concurrent writers.
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		// QueryMessages returns up to limit messages, newest first.
		QueryMessages(ctx context.Context, conversationID string, limit, offset int) ([]Message, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Gateway = (*Service)(nil)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, mailSvc: mailSvc, conf: conf}
}

// FetchMessages returns the newest limit messages of a conversation, newest
// first. The limit is clamped to [1, 100]; 0 means the default page of 50.
func (svc *Service) FetchMessages(ctx context.Context, conversationID string, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	} else if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return svc.repo.QueryMessages(ctx, conversationID, limit, offset)
}

// CreateMessage validates and persists a message. The sender must be a
// participant; a reply target must be an existing message of the same
// conversation; content may be empty only when an attachment is present.
func (svc *Service) CreateMessage(ctx context.Context, nm NewMessage) (Message, error) {
	nm.Content = core.CleanString(nm.Content)
	if nm.Content == "" && nm.Attachment == nil {
		return Message{}, core.NewValidationError(nil,
			core.FieldError{Field: "content", Error: "either content or an attachment is required"})
	}

	conv, err := svc.repo.GetConversationByID(ctx, nm.ConversationID)
	if err != nil {
		return Message{}, err
	}
	if !conv.HasParticipant(nm.SenderID) {
		return Message{}, ErrNotParticipant
	}
	if nm.ReplyToID != "" {
		target, err := svc.repo.GetMessageByID(ctx, nm.ReplyToID)
		if err != nil {
			return Message{}, err
		}
		if target.ConversationID != conv.ID {
			return Message{}, core.NewValidationError(nil,
				core.FieldError{Field: "reply_to_id", Error: "reply target belongs to another conversation"})
		}
	}

	kind := MessageKindText
	if nm.Attachment != nil {
		kind = MessageKindAttachment
	}
	msg := Message{
		ConversationID: conv.ID,
		SenderID:       nm.SenderID,
		Content:        nm.Content,
		Attachment:     nm.Attachment,
		ReplyToID:      nm.ReplyToID,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}
	return svc.repo.CreateMessage(ctx, msg)
}

// Conversations lists a user's conversations with their latest message.
func (svc *Service) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	return svc.repo.QueryConversationsByParticipant(ctx, userID)
}

// GetConversation fetches a conversation the given user participates in.
func (svc *Service) GetConversation(ctx context.Context, id, userID string) (Conversation, error) {
	conv, err := svc.repo.GetConversationByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return Conversation{}, ErrNotParticipant
	}
	return conv, nil
}

// notifyFirstContact emails the peer that a conversation has been started
// with them. Best-effort: lookup failures are ignored and delivery is async.
func (svc *Service) notifyFirstContact(ctx context.Context, initiatorID, peerID string) {
	if svc.mailSvc == nil || svc.usrSvc == nil {
		return
	}
	peer, err := svc.usrSvc.GetByID(ctx, peerID)
	if err != nil || peer.Email == "" {
		return
	}
	initiator, err := svc.usrSvc.GetByID(ctx, initiatorID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: peer.Name, Address: peer.Email}},
		Subject: fmt.Sprintf("%s started a conversation with you", initiator.Name),
		BodyStr: fmt.Sprintf(
			"%s sent you a message on %s. Log in to read and reply: %s",
			initiator.Name, svc.conf.AppName, svc.conf.FrontendBaseURL,
		),
	})
}
