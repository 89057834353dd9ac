package models

import "time"

// Message is a single point-to-point message. It is never mutated after
// the sender's client produces it.
type Message struct {
	Sender          string `json:"sender" cbor:"1,keyasint"`
	Recipient       string `json:"recipient" cbor:"2,keyasint"`
	Content         string `json:"content" cbor:"3,keyasint"`
	DeleteTimestamp int64  `json:"delete_timestamp" cbor:"4,keyasint,omitempty"`
}

// ExpireAt converts DeleteTimestamp (epoch seconds, 0 = none) to a time.
// The zero time means no expiry was requested.
func (m Message) ExpireAt() time.Time {
	if m.DeleteTimestamp == 0 {
		return time.Time{}
	}
	return time.Unix(m.DeleteTimestamp, 0).UTC()
}

// LogEntry is one row of a per-user message log in the SQL backend.
// The auto-increment ID is the append order.
type LogEntry struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index:idx_log_user_id;size:128;not null"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
}

// LogExpiry holds the whole-log expiry of one user id, in epoch seconds.
type LogExpiry struct {
	UserID    string `gorm:"primaryKey;size:128"`
	ExpireAt  int64  `gorm:"index;not null"`
	UpdatedAt time.Time
}
