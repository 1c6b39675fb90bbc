// Package llm talks to an OpenAI compatible completion API.
package llm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	SystemPrompt = "You are EchoFlow, an intelligent and helpful AI assistant. Your responses should be accurate, relevant, and concise."

	titlePrompt = `You are an expert at creating concise and relevant titles for chat threads.

Generate a title that accurately reflects the content of the first message in the thread. Reply with the title only.

First Message: %s

Title: `

	DefaultTitle   = "New Chat"
	MaxTitleRunes  = 50
	titleMaxTokens = 32
)

var ErrEmptyCompletion = errors.New("language model returned an empty completion")

// Turn is one entry of the history sent to the model. Role is user,
// assistant or system.
type Turn struct {
	Role    string
	Content string
}

type Provider interface {
	GenerateThreadTitle(ctx context.Context, firstMessage string) (string, error)
	GenerateChatResponse(ctx context.Context, history []Turn) (string, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	TitleModel  string
	Temperature float32
}

// NormalizeTitle strips the quotes and labels models like to add and caps
// the result at MaxTitleRunes.
func NormalizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimPrefix(title, "Title:")
	title = strings.Trim(strings.TrimSpace(title), "\"'`*#")
	title = strings.TrimSpace(title)

	if utf8.RuneCountInString(title) > MaxTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:MaxTitleRunes]))
	}
	if title == "" {
		return DefaultTitle
	}
	return title
}
