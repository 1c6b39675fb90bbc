package chat_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"echoflow/internal/app/chat"
	"echoflow/internal/app/identity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(f *fixture, as *identity.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	rg := engine.Group("/api", func(c *gin.Context) {
		if as != nil {
			identity.Set(c, as)
		}
		c.Next()
	})
	chat.RegisterRoutes(rg, chat.NewHandler(f.chat, zap.NewNop()))
	return engine
}

func post(engine *gin.Engine, threadID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/threads/"+threadID+"/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSendMessageHandler(t *testing.T) {
	f := newFixture(t, 10)
	engine := newEngine(f, f.id)

	w := post(engine, f.thread.ID, `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var result chat.SendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, chat.StateSucceeded, result.State)
	assert.Equal(t, "reply 1", result.AssistantMessage.Content)
	assert.Contains(t, w.Body.String(), `"userMessage"`)
	assert.NotContains(t, w.Body.String(), `"seq"`)
}

func TestSendMessageHandlerErrors(t *testing.T) {
	f := newFixture(t, 10)

	tests := []struct {
		name   string
		as     *identity.Identity
		thread string
		body   string
		want   int
	}{
		{"no identity", nil, f.thread.ID, `{"content":"hi"}`, http.StatusUnauthorized},
		{"missing content", f.id, f.thread.ID, `{}`, http.StatusBadRequest},
		{"blank content", f.id, f.thread.ID, `{"content":"  "}`, http.StatusBadRequest},
		{"foreign thread", &identity.Identity{UserID: "u2"}, f.thread.ID, `{"content":"hi"}`, http.StatusNotFound},
		{"bad retry", f.id, f.thread.ID, `{"content":"hi","isRetry":true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(newEngine(f, tt.as), tt.thread, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSendMessageHandlerReportsFailedSend(t *testing.T) {
	f := newFixture(t, 10)
	f.llm.setFail(errors.New("down"))

	w := post(newEngine(f, f.id), f.thread.ID, `{"content":"hello"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var result chat.SendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, chat.StateFailed, result.State)
	require.NotNil(t, result.UserMessage)
	assert.True(t, result.UserMessage.IsFailed)
}
