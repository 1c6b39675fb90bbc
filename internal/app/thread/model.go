package thread

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTitle   = "New Chat"
	MaxTitleLength = 100
)

const (
	EventSnapshot = "snapshot"
	EventCreated  = "thread.created"
	EventUpdated  = "thread.updated"
	EventTouched  = "thread.touched"
	EventDeleted  = "thread.deleted"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrInvalidTitle   = errors.New("thread title must be 1-100 characters")
)

type Thread struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;index:idx_threads_user_updated,priority:1" json:"userId"`
	ThreadTitle string    `gorm:"not null;default:'New Chat'" json:"threadTitle"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null;index:idx_threads_user_updated,priority:2" json:"updatedAt"`
	IsPublic    bool      `gorm:"not null;default:false" json:"isPublic"`
}

// Patch lists the fields UpdateThread may change. Nil fields are left
// untouched.
type Patch struct {
	ThreadTitle *string `json:"threadTitle" binding:"omitempty,max=100"`
	IsPublic    *bool   `json:"isPublic"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// TopicForUser carries thread list changes of one user.
func TopicForUser(userID string) string {
	return "threads:user:" + userID
}

// TopicForThread carries message changes of one thread.
func TopicForThread(threadID string) string {
	return "messages:thread:" + threadID
}

// PublicCacheKey is where the public view of a thread assembled at version
// updatedAt is cached. A view assembled before a change lands under the
// old version and is never read again.
func PublicCacheKey(threadID string, updatedAt time.Time) string {
	return fmt.Sprintf("share:thread:%s:%d", threadID, updatedAt.UnixNano())
}

// PublicCachePattern matches every cached version of the thread's public view.
func PublicCachePattern(threadID string) string {
	return "share:thread:" + threadID + ":*"
}
