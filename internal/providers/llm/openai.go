package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"echoflow/internal/metrics"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type OpenAIProvider struct {
	client *openai.Client
	opts   Options
	logger *zap.SugaredLogger
}

// NewOpenAIProvider builds a provider for any OpenAI compatible endpoint.
// httpClient may be nil.
func NewOpenAIProvider(opts Options, httpClient *http.Client, logger *zap.Logger) *OpenAIProvider {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
		logger: logger.Sugar(),
	}
}

func (p *OpenAIProvider) GenerateThreadTitle(ctx context.Context, firstMessage string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.opts.TitleModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(titlePrompt, firstMessage)},
		},
		Temperature: p.opts.Temperature,
		MaxTokens:   titleMaxTokens,
	}

	content, err := p.complete(ctx, "title", req)
	if err != nil {
		return "", err
	}
	return NormalizeTitle(content), nil
}

func (p *OpenAIProvider) GenerateChatResponse(ctx context.Context, history []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt,
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       p.opts.ChatModel,
		Messages:    messages,
		Temperature: p.opts.Temperature,
	}

	return p.complete(ctx, "chat", req)
}

func (p *OpenAIProvider) complete(ctx context.Context, operation string, req openai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	metrics.LLMDuration.WithLabelValues(req.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMErrorsTotal.WithLabelValues(req.Model, operation).Inc()
		p.logger.Warnw("Completion request failed", "model", req.Model, "operation", operation, "error", err)
		return "", fmt.Errorf("%s completion: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMErrorsTotal.WithLabelValues(req.Model, operation).Inc()
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		metrics.LLMErrorsTotal.WithLabelValues(req.Model, operation).Inc()
		return "", ErrEmptyCompletion
	}

	p.logger.Debugw("Completion finished",
		"model", req.Model,
		"operation", operation,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start).String(),
	)
	return content, nil
}
