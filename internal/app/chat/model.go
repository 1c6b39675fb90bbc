package chat

import (
	"errors"
	"time"

	"echoflow/internal/app/message"
)

// State of a single send.
type State string

const (
	StateSending   State = "sending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const (
	EventFailed = "chat.failed"
	// MaxContentSize is counted in characters after trimming.
	MaxContentSize = 32000
)

var (
	ErrEmptyContent       = errors.New("message content is empty")
	ErrContentTooLong     = errors.New("message content is too long")
	ErrSendInProgress     = errors.New("a reply is already being generated for this thread")
	ErrInvalidRetryTarget = errors.New("retry target must be a user message of this thread")
	ErrCompletionFailed   = errors.New("failed to get a reply from the assistant")
)

type SendRequest struct {
	Content         string `json:"content" binding:"required"`
	IsRetry         bool   `json:"isRetry"`
	TargetMessageID string `json:"targetMessageId"`
}

type SendResult struct {
	State            State            `json:"state"`
	UserMessage      *message.Message `json:"userMessage,omitempty"`
	AssistantMessage *message.Message `json:"assistantMessage,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// FailureNotice is pushed to the sender when a send ends in StateFailed.
type FailureNotice struct {
	ThreadID  string    `json:"threadId"`
	MessageID string    `json:"messageId"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

type Options struct {
	ContextWindow int
	LLMTimeout    time.Duration
	TitleTimeout  time.Duration
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NotificationsTopic carries per-user notices that are not part of any
// thread or message snapshot.
func NotificationsTopic(userID string) string {
	return "notifications:user:" + userID
}
