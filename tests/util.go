package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/darasahq/darasa/core/chat"
	"github.com/darasahq/darasa/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateDirectConversation(t *testing.T, repo chat.Repository, userA, userB string) chat.Conversation {
	t.Helper()

	now := time.Now().UTC()
	conv := chat.Conversation{
		Kind: chat.KindDirect,
		Participants: []chat.Participant{
			{UserID: userA, JoinedAt: now},
			{UserID: userB, JoinedAt: now},
		},
		CreatedAt: now,
	}
	conv, err := repo.CreateConversation(context.Background(), conv)
	if err != nil {
		t.Fatalf("CreateDirectConversation() failed: %v", err)
	}
	return conv
}

func CreateMessage(
	t *testing.T,
	repo chat.Repository,
	conversationID, senderID, content string,
	createdAt ...time.Time,
) chat.Message {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	msg, err := repo.CreateMessage(context.Background(), chat.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           chat.MessageKindText,
		CreatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateMessage() failed: %v", err)
	}
	return msg
}
