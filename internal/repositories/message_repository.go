package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"roomie-chat/internal/models"
)

var (
	ErrEmptyContent       = errors.New("message content is required")
	ErrMissingParticipant = errors.New("both participants are required")
)

// IsValidation reports whether err is a caller input error rather than a
// storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyContent) || errors.Is(err, ErrMissingParticipant)
}

// MessageRepository defines persistence for direct messages.
type MessageRepository interface {
	Append(ctx context.Context, senderID, recipientID, content string) (models.Message, error)
	History(ctx context.Context, userA, userB string) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, recipientID, senderID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a new message and returns the persisted row with its
// server-assigned id and timestamp.
func (r *MessageRepo) Append(ctx context.Context, senderID, recipientID, content string) (models.Message, error) {
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}
	if senderID == "" || recipientID == "" {
		return models.Message{}, ErrMissingParticipant
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, recipient_id, content) VALUES ($1, $2, $3) RETURNING id, sender_id, recipient_id, content, read, sent_at`, senderID, recipientID, content).
		Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content, &msg.Read, &msg.SentAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns every message exchanged between the two users regardless of
// direction, oldest first. sent_at is not unique at sub-second resolution, so
// id breaks ties to keep the order stable.
func (r *MessageRepo) History(ctx context.Context, userA, userB string) ([]models.Message, error) {
	if userA == "" || userB == "" {
		return nil, ErrMissingParticipant
	}

	query := `SELECT id, sender_id, recipient_id, content, read, sent_at
        FROM messages
        WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
        ORDER BY sent_at ASC, id ASC`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, userA, userB); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// MarkConversationRead flags every message sent by senderID to recipientID
// as read.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, recipientID, senderID string) error {
	if recipientID == "" || senderID == "" {
		return ErrMissingParticipant
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE WHERE recipient_id=$1 AND sender_id=$2 AND read = FALSE`, recipientID, senderID); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}
