package models

import "time"

// Message is a persisted direct message between two users. The JSON names
// follow the platform API contract: the stored sender and recipient surface
// as fromUserId/toUserId and the persistence timestamp surfaces as date.
type Message struct {
	ID          int64     `db:"id" json:"id"`
	Content     string    `db:"content" json:"content"`
	SenderID    string    `db:"sender_id" json:"fromUserId"`
	RecipientID string    `db:"recipient_id" json:"toUserId"`
	SentAt      time.Time `db:"sent_at" json:"date"`
	Read        bool      `db:"read" json:"read"`
}
