package share

import (
	"time"

	"echoflow/internal/app/message"
)

const PlaceholderName = "A User"

// PublicThread is the read-only view of a shared thread.
type PublicThread struct {
	ID          string          `json:"id"`
	ThreadTitle string          `json:"threadTitle"`
	CreatedAt   time.Time       `json:"createdAt"`
	Messages    []PublicMessage `json:"messages"`
	User        PublicUser      `json:"user"`
}

type PublicMessage struct {
	ID        string       `json:"id"`
	Role      message.Role `json:"role"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
}

type PublicUser struct {
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
