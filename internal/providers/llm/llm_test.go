package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"echoflow/internal/providers/llm"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		`"Weekend Trip to Lisbon"`:          "Weekend Trip to Lisbon",
		"Title: Go Generics\nExplanation": "Go Generics",
		"  **Tax Questions**  ":             "Tax Questions",
		"":                                  llm.DefaultTitle,
		`""`:                                llm.DefaultTitle,
	}
	for raw, want := range cases {
		assert.Equal(t, want, llm.NormalizeTitle(raw), "raw %q", raw)
	}

	long := llm.NormalizeTitle(strings.Repeat("ü", 80))
	assert.Equal(t, llm.MaxTitleRunes, len([]rune(long)))
}

type fakeCompletions struct {
	t       *testing.T
	reply   string
	status  int
	mu      sync.Mutex
	request openai.ChatCompletionRequest
}

func (f *fakeCompletions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.request = req
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
		return
	}

	choices := []openai.ChatCompletionChoice{}
	if f.reply != "" {
		choices = append(choices, openai.ChatCompletionChoice{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
		})
	}
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "cmpl-1", Model: req.Model, Choices: choices})
}

func (f *fakeCompletions) last() openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.request
}

func newProvider(t *testing.T, fake *fakeCompletions) *llm.OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return llm.NewOpenAIProvider(llm.Options{
		APIKey:      "test",
		BaseURL:     srv.URL + "/v1",
		ChatModel:   "chat-model",
		TitleModel:  "title-model",
		Temperature: 0.5,
	}, srv.Client(), zap.NewNop())
}

func TestGenerateChatResponsePrependsSystemPrompt(t *testing.T) {
	fake := &fakeCompletions{t: t, reply: "  Hello there!  "}
	provider := newProvider(t, fake)

	reply, err := provider.GenerateChatResponse(context.Background(), []llm.Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply)

	req := fake.last()
	assert.Equal(t, "chat-model", req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, llm.SystemPrompt, req.Messages[0].Content)
	assert.Equal(t, "how are you?", req.Messages[3].Content)
}

func TestGenerateThreadTitle(t *testing.T) {
	fake := &fakeCompletions{t: t, reply: `"Planning a Garden"`}
	provider := newProvider(t, fake)

	title, err := provider.GenerateThreadTitle(context.Background(), "what should I plant in spring?")
	require.NoError(t, err)
	assert.Equal(t, "Planning a Garden", title)

	req := fake.last()
	assert.Equal(t, "title-model", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "what should I plant in spring?")
}

func TestEmptyCompletion(t *testing.T) {
	provider := newProvider(t, &fakeCompletions{t: t})

	_, err := provider.GenerateChatResponse(context.Background(), []llm.Turn{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}

func TestUpstreamError(t *testing.T) {
	provider := newProvider(t, &fakeCompletions{t: t, status: http.StatusInternalServerError})

	_, err := provider.GenerateChatResponse(context.Background(), []llm.Turn{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	var apiErr *openai.APIError
	assert.ErrorAs(t, err, &apiErr)
}
