package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/chat"
)

type chatRepository struct {
	db *chatTables
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db.chat}
}

func (repo *chatRepository) CreateConversation(_ context.Context, conv chat.Conversation) (chat.Conversation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if conv.Kind == chat.KindDirect {
		if len(conv.Participants) != 2 {
			return chat.Conversation{}, chat.ErrConversationCreate
		}
		key := chat.DirectKey(conv.Participants[0].UserID, conv.Participants[1].UserID)
		if id, ok := repo.db.directKeys[key]; ok {
			return *repo.db.conversations[id], nil
		}
		conv.ID = uuid.New().String()
		repo.db.directKeys[key] = conv.ID
	} else {
		conv.ID = uuid.New().String()
	}
	for i := range conv.Participants {
		conv.Participants[i].ConversationID = conv.ID
	}
	repo.db.conversations[conv.ID] = &conv
	return conv, nil
}

func (repo *chatRepository) GetConversationByID(_ context.Context, id string) (chat.Conversation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if conv, ok := repo.db.conversations[id]; ok {
		return *conv, nil
	}
	return chat.Conversation{}, chat.ErrConversationNotFound
}

func (repo *chatRepository) GetDirectConversation(_ context.Context, userA, userB string) (chat.Conversation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if id, ok := repo.db.directKeys[chat.DirectKey(userA, userB)]; ok {
		return *repo.db.conversations[id], nil
	}
	return chat.Conversation{}, chat.ErrConversationNotFound
}

func (repo *chatRepository) QueryConversationsByParticipant(_ context.Context, userID string) ([]chat.ConversationSummary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	summaries := make([]chat.ConversationSummary, 0)
	for _, conv := range repo.db.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		summary := chat.ConversationSummary{Conversation: *conv}
		if last, ok := repo.lastMessage(conv.ID); ok {
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (repo *chatRepository) lastMessage(conversationID string) (chat.Message, bool) {
	var last chat.Message
	var found bool
	for _, msg := range repo.db.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if !found || last.Before(*msg) {
			last = *msg
			found = true
		}
	}
	return last, found
}

func (repo *chatRepository) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = uuid.New().String()
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

func (repo *chatRepository) GetMessageByID(_ context.Context, id string) (chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if msg, ok := repo.db.messages[id]; ok {
		return *msg, nil
	}
	return chat.Message{}, chat.ErrMessageNotFound
}

func (repo *chatRepository) QueryMessages(_ context.Context, conversationID string, limit, offset int) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.ConversationID == conversationID {
			msgs = append(msgs, *msg)
		}
	}
	// newest first
	sort.Slice(msgs, func(i, j int) bool { return msgs[j].Before(msgs[i]) })

	if offset >= len(msgs) {
		return []chat.Message{}, nil
	}
	msgs = msgs[offset:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
