package websocket_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"echoflow/internal/app/chat"
	"echoflow/internal/app/identity"
	"echoflow/internal/app/message"
	"echoflow/internal/app/thread"
	"echoflow/internal/db/dbtest"
	"echoflow/internal/gateways/websocket"
	"echoflow/internal/providers/redis/redistest"
	"echoflow/internal/utils"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuth map[string]*identity.Identity

func (s stubAuth) Authenticate(_ context.Context, token string) (*identity.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, errors.New("unknown token")
}

type rawFrame struct {
	Event    string          `json:"event"`
	ThreadID string          `json:"thread_id"`
	Data     json.RawMessage `json:"data"`
}

type fixture struct {
	bus      *utils.EventBus
	hub      *websocket.Hub
	threads  thread.Service
	messages message.Service
	url      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	redisP, _ := redistest.New(t)
	bus := utils.NewEventBus(zap.NewNop())
	threads := thread.NewService(thread.NewRepository(conn), redisP, bus, zap.NewNop())
	messages := message.NewService(message.NewRepository(conn), threads, bus, zap.NewNop())

	auth := stubAuth{
		"token-u1": {UserID: "u1", SessionID: "s1"},
		"token-u2": {UserID: "u2", SessionID: "s2"},
	}
	hub := websocket.NewHub(auth, threads, messages, bus, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	websocket.RegisterRoutes(engine, hub)
	srv := httptest.NewServer(engine)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return &fixture{
		bus:      bus,
		hub:      hub,
		threads:  threads,
		messages: messages,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (f *fixture) dial(t *testing.T, token string) *gorilla.Conn {
	t.Helper()
	conn, resp, err := gorilla.DefaultDialer.Dial(f.url+"?token="+token, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gorilla.Conn, req websocket.Request) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
}

// readEvent returns the next frame with the given event, skipping others.
func readEvent(t *testing.T, conn *gorilla.Conn, event string) rawFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame rawFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Event == event {
			return frame
		}
	}
}

func TestRejectsMissingOrInvalidToken(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{f.url, f.url + "?token=nope"} {
		_, resp, err := gorilla.DefaultDialer.Dial(target, nil)
		require.ErrorIs(t, err, gorilla.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestThreadListStream(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "token-u1")

	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	send(t, conn, websocket.Request{Action: websocket.ActionSubscribeThreads})
	var threads []*thread.Thread
	require.NoError(t, json.Unmarshal(readEvent(t, conn, websocket.EventThreads).Data, &threads))
	assert.Empty(t, threads)

	created, err := f.threads.CreateThread(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal(readEvent(t, conn, websocket.EventThreads).Data, &threads))
	require.Len(t, threads, 1)
	assert.Equal(t, created.ID, threads[0].ID)
}

func TestMessageStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th, err := f.threads.CreateThread(ctx, "u1")
	require.NoError(t, err)
	conn := f.dial(t, "token-u1")

	send(t, conn, websocket.Request{Action: websocket.ActionSubscribeMessages, ThreadID: th.ID})
	frame := readEvent(t, conn, websocket.EventMessages)
	assert.Equal(t, th.ID, frame.ThreadID)
	assert.JSONEq(t, `[]`, string(frame.Data))

	_, err = f.messages.AddMessage(ctx, th.ID, message.NewMessage{UserID: "u1", Role: message.RoleUser, Content: "hi"})
	require.NoError(t, err)

	var messages []*message.Message
	require.NoError(t, json.Unmarshal(readEvent(t, conn, websocket.EventMessages).Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestCannotSubscribeToForeignThread(t *testing.T) {
	f := newFixture(t)
	th, err := f.threads.CreateThread(context.Background(), "u1")
	require.NoError(t, err)
	conn := f.dial(t, "token-u2")

	send(t, conn, websocket.Request{Action: websocket.ActionSubscribeMessages, ThreadID: th.ID})
	assert.JSONEq(t, `{"error":"thread not found"}`, string(readEvent(t, conn, websocket.EventError).Data))

	send(t, conn, websocket.Request{Action: "dance"})
	assert.JSONEq(t, `{"error":"unknown action"}`, string(readEvent(t, conn, websocket.EventError).Data))
}

func TestFailureNoticesReachTheSender(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "token-u1")
	assert.Eventually(t, func() bool {
		return f.bus.SubscriberCount(chat.NotificationsTopic("u1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.bus.Publish(chat.NotificationsTopic("u1"), chat.EventFailed, chat.FailureNotice{ThreadID: "t1", MessageID: "m1"})

	var notice chat.FailureNotice
	require.NoError(t, json.Unmarshal(readEvent(t, conn, chat.EventFailed).Data, &notice))
	assert.Equal(t, "m1", notice.MessageID)
}

func TestDisconnectCancelsSubscriptions(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "token-u1")
	send(t, conn, websocket.Request{Action: websocket.ActionSubscribeThreads})
	readEvent(t, conn, websocket.EventThreads)
	require.Equal(t, 1, f.bus.SubscriberCount(thread.TopicForUser("u1")))

	conn.Close()

	assert.Eventually(t, func() bool {
		return f.hub.ClientCount() == 0 && f.bus.SubscriberCount(thread.TopicForUser("u1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
