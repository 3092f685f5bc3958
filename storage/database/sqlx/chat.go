package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/chat"
)

// newest first, identifier tie-break; matches message_conversation_order_idx
var messageOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

// Row structs mirror the schema: NOT NULL columns bind plain Go values so an
// empty string hits the column (or its DEFAULT) instead of an explicit NULL;
// null wrappers are reserved for columns that are actually nullable.
type (
	conversationRow struct {
		ID          string      `db:"id"`
		Kind        string      `db:"kind"`
		Title       string      `db:"title"`
		Description string      `db:"description"`
		DirectKey   null.String `db:"direct_key"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	participantRow struct {
		ConversationID string    `db:"conversation_id"`
		UserID         string    `db:"user_id"`
		JoinedAt       time.Time `db:"joined_at"`
	}

	messageRow struct {
		ID             string      `db:"id"`
		ConversationID string      `db:"conversation_id"`
		SenderID       string      `db:"sender_id"`
		Content        null.String `db:"content"`
		AttachmentURL  null.String `db:"attachment_url"`
		AttachmentName null.String `db:"attachment_name"`
		AttachmentSize null.Int64  `db:"attachment_size"`
		AttachmentType null.String `db:"attachment_type"`
		ReplyToID      null.String `db:"reply_to_id"`
		Kind           string      `db:"kind"`
		CreatedAt      time.Time   `db:"created_at"`
	}
)

func (repo chatRepository) unrowConversation(row conversationRow, parts []participantRow) chat.Conversation {
	conv := chat.Conversation{
		ID:          row.ID,
		Kind:        row.Kind,
		Title:       row.Title,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}
	conv.Participants = make([]chat.Participant, 0, len(parts))
	for _, p := range parts {
		conv.Participants = append(conv.Participants, chat.Participant{
			ConversationID: p.ConversationID,
			UserID:         p.UserID,
			JoinedAt:       p.JoinedAt,
		})
	}
	return conv
}

func (repo chatRepository) rowMessage(msg chat.Message) messageRow {
	row := messageRow{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        null.NewString(msg.Content, msg.Content != ""),
		ReplyToID:      null.NewString(msg.ReplyToID, msg.ReplyToID != ""),
		Kind:           msg.Kind,
		CreatedAt:      msg.CreatedAt.UTC(),
	}
	if att := msg.Attachment; att != nil {
		row.AttachmentURL = null.StringFrom(att.URL)
		row.AttachmentName = null.StringFrom(att.Name)
		row.AttachmentSize = null.Int64From(att.Size)
		row.AttachmentType = null.StringFrom(att.ContentType)
	}
	return row
}

func (repo chatRepository) unrowMessage(row messageRow) chat.Message {
	msg := chat.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Content:        row.Content.String,
		ReplyToID:      row.ReplyToID.String,
		Kind:           row.Kind,
		CreatedAt:      row.CreatedAt,
	}
	if row.AttachmentURL.Valid {
		msg.Attachment = &chat.AttachmentRef{
			URL:         row.AttachmentURL.String,
			Name:        row.AttachmentName.String,
			Size:        row.AttachmentSize.Int64,
			ContentType: row.AttachmentType.String,
		}
	}
	return msg
}

func (repo chatRepository) participants(ctx context.Context, conversationID string) ([]participantRow, error) {
	var parts []participantRow
	err := repo.db.SelectContext(ctx, &parts,
		`SELECT * FROM participant WHERE conversation_id = $1 ORDER BY joined_at, user_id`, conversationID)
	return parts, err
}

// CreateConversation inserts the conversation and its participants. For
// direct conversations the direct_key unique constraint makes creation
// idempotent: on conflict the already-existing conversation is returned.
func (repo chatRepository) CreateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error) {
	conv.ID = uuid.New().String()

	directKey := null.String{}
	if conv.Kind == chat.KindDirect {
		if len(conv.Participants) != 2 {
			return chat.Conversation{}, errors.New("direct conversation requires exactly two participants")
		}
		directKey = null.StringFrom(chat.DirectKey(conv.Participants[0].UserID, conv.Participants[1].UserID))
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return chat.Conversation{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var insertedID string
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversation (id, kind, title, description, direct_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (direct_key) DO NOTHING
		 RETURNING id`,
		conv.ID, conv.Kind, conv.Title, conv.Description, directKey, conv.CreatedAt.UTC(),
	).Scan(&insertedID)
	if err == sql.ErrNoRows {
		// lost the race (or repeated resolution): hand back the existing one
		return repo.GetDirectConversation(ctx, conv.Participants[0].UserID, conv.Participants[1].UserID)
	}
	if err != nil {
		return chat.Conversation{}, errors.Wrap(err, "inserting conversation")
	}

	for i := range conv.Participants {
		conv.Participants[i].ConversationID = insertedID
		p := conv.Participants[i]
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO participant (conversation_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			p.ConversationID, p.UserID, p.JoinedAt.UTC(),
		); err != nil {
			return chat.Conversation{}, errors.Wrap(err, "inserting participant")
		}
	}

	if err = tx.Commit(); err != nil {
		return chat.Conversation{}, errors.Wrap(err, "committing conversation")
	}
	conv.ID = insertedID
	return conv, nil
}

func (repo chatRepository) GetConversationByID(ctx context.Context, id string) (chat.Conversation, error) {
	var row conversationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM conversation WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return chat.Conversation{}, chat.ErrConversationNotFound
		}
		return chat.Conversation{}, errors.Wrap(err, "getting conversation")
	}
	parts, err := repo.participants(ctx, row.ID)
	if err != nil {
		return chat.Conversation{}, errors.Wrap(err, "getting participants")
	}
	return repo.unrowConversation(row, parts), nil
}

func (repo chatRepository) GetDirectConversation(ctx context.Context, userA, userB string) (chat.Conversation, error) {
	var row conversationRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM conversation WHERE direct_key = $1`, chat.DirectKey(userA, userB))
	if err != nil {
		if err == sql.ErrNoRows {
			return chat.Conversation{}, chat.ErrConversationNotFound
		}
		return chat.Conversation{}, errors.Wrap(err, "getting direct conversation")
	}
	parts, err := repo.participants(ctx, row.ID)
	if err != nil {
		return chat.Conversation{}, errors.Wrap(err, "getting participants")
	}
	return repo.unrowConversation(row, parts), nil
}

func (repo chatRepository) QueryConversationsByParticipant(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	var rows []conversationRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT c.* FROM conversation c
		 JOIN participant p ON p.conversation_id = c.id
		 WHERE p.user_id = $1 `+orderBy(core.DBOrdering{Field: "c.created_at"}),
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}

	summaries := make([]chat.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		parts, err := repo.participants(ctx, row.ID)
		if err != nil {
			return nil, errors.Wrap(err, "getting participants")
		}
		summary := chat.ConversationSummary{Conversation: repo.unrowConversation(row, parts)}

		var last messageRow
		err = repo.db.GetContext(ctx, &last,
			`SELECT * FROM message WHERE conversation_id = $1 `+orderBy(messageOrdering...)+` LIMIT 1`, row.ID)
		switch err {
		case nil:
			msg := repo.unrowMessage(last)
			summary.LastMessage = &msg
		case sql.ErrNoRows:
		default:
			return nil, errors.Wrap(err, "getting last message")
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

const insertMessageQuery = `
	INSERT INTO message (id, conversation_id, sender_id, content, attachment_url, attachment_name,
	                     attachment_size, attachment_type, reply_to_id, kind, created_at)
	VALUES (:id, :conversation_id, :sender_id, :content, :attachment_url, :attachment_name,
	        :attachment_size, :attachment_type, :reply_to_id, :kind, :created_at)`

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.New().String()
	row := repo.rowMessage(msg)
	_, err := repo.db.NamedExecContext(ctx, insertMessageQuery, row)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo chatRepository) GetMessageByID(ctx context.Context, id string) (chat.Message, error) {
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM message WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return chat.Message{}, chat.ErrMessageNotFound
		}
		return chat.Message{}, errors.Wrap(err, "getting message")
	}
	return repo.unrowMessage(row), nil
}

func (repo chatRepository) QueryMessages(ctx context.Context, conversationID string, limit, offset int) ([]chat.Message, error) {
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM message WHERE conversation_id = $1 `+orderBy(messageOrdering...)+` LIMIT $2 OFFSET $3`,
		conversationID, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, repo.unrowMessage(row))
	}
	return msgs, nil
}
