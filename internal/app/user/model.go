package user

import (
	"errors"
	"time"
)

const (
	// AssistantUserID owns every assistant message.
	AssistantUserID = "ai-assistant"
	AssistantName   = "EchoFlow"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already registered")
)

type User struct {
	UID          string    `gorm:"column:uid;primaryKey;type:varchar(36)" json:"uid"`
	Email        *string   `gorm:"uniqueIndex" json:"email"`
	FullName     string    `gorm:"not null;default:''" json:"fullName"`
	AvatarURL    string    `gorm:"not null;default:''" json:"avatarUrl"`
	PasswordHash string    `gorm:"not null;default:''" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}

// Profile holds the fields a sign-in or a profile update may merge into
// the stored record. Empty fields leave the stored value alone.
type Profile struct {
	Email     string `json:"email"`
	FullName  string `json:"fullName" binding:"max=100"`
	AvatarURL string `json:"avatarUrl" binding:"omitempty,url,max=2048"`
}

type Response struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultAvatarURL is the identicon shown for users without an avatar.
func DefaultAvatarURL(uid string) string {
	return "https://www.gravatar.com/avatar/" + uid + "?d=identicon"
}

func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

func (u *User) ToResponse() *Response {
	avatar := u.AvatarURL
	if avatar == "" {
		avatar = DefaultAvatarURL(u.UID)
	}
	return &Response{
		UID:       u.UID,
		Email:     u.EmailAddress(),
		FullName:  u.FullName,
		AvatarURL: avatar,
		CreatedAt: u.CreatedAt,
	}
}
