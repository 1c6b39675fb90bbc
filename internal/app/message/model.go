package message

import (
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

const (
	EventSnapshot = "snapshot"
	EventAdded    = "message.added"
	EventUpdated  = "message.updated"
	EventFailed   = "message.failed"
	EventTruncate = "message.truncated"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidRole     = errors.New("invalid message role")
)

type Message struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ThreadID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_messages_thread_seq,priority:1" json:"threadId"`
	// Seq orders messages inside a thread; createdAt never decreases along it.
	Seq       int64     `gorm:"not null;uniqueIndex:idx_messages_thread_seq,priority:2" json:"-"`
	UserID    string    `gorm:"type:varchar(36);not null" json:"userId"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	IsFailed  bool      `gorm:"not null;default:false" json:"isFailed"`
}

type NewMessage struct {
	UserID  string
	Role    Role
	Content string
}

type ErrorResponse struct {
	Error string `json:"error"`
}
