package chat_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"echoflow/internal/app/chat"
	"echoflow/internal/app/identity"
	"echoflow/internal/app/message"
	"echoflow/internal/app/thread"
	"echoflow/internal/app/user"
	"echoflow/internal/db/dbtest"
	"echoflow/internal/providers/llm"
	"echoflow/internal/providers/redis/redistest"
	"echoflow/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLLM answers "reply N" for the Nth chat call unless fail is set.
type fakeLLM struct {
	mu        sync.Mutex
	fail      error
	title     string
	calls     int
	titles    int
	histories [][]llm.Turn
	// block, when set, holds GenerateChatResponse until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeLLM) GenerateThreadTitle(ctx context.Context, firstMessage string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles++
	if f.title == "" {
		return "", errors.New("no title")
	}
	return f.title, nil
}

func (f *fakeLLM) GenerateChatResponse(ctx context.Context, history []llm.Turn) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.histories = append(f.histories, history)
	if f.fail != nil {
		return "", f.fail
	}
	return "reply " + string(rune('0'+f.calls)), nil
}

func (f *fakeLLM) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeLLM) lastHistory() []llm.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.histories) == 0 {
		return nil
	}
	return f.histories[len(f.histories)-1]
}

type fixture struct {
	llm      *fakeLLM
	bus      *utils.EventBus
	threads  thread.Service
	messages message.Service
	chat     chat.Service
	thread   *thread.Thread
	id       *identity.Identity
}

func newFixture(t *testing.T, window int) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	redisP, _ := redistest.New(t)
	bus := utils.NewEventBus(zap.NewNop())
	threads := thread.NewService(thread.NewRepository(conn), redisP, bus, zap.NewNop())
	messages := message.NewService(message.NewRepository(conn), threads, bus, zap.NewNop())
	fake := &fakeLLM{title: "Generated Title"}

	svc := chat.NewService(threads, messages, fake, bus, chat.Options{
		ContextWindow: window,
		LLMTimeout:    time.Second,
		TitleTimeout:  time.Second,
	}, zap.NewNop())

	th, err := threads.CreateThread(context.Background(), "u1")
	require.NoError(t, err)

	f := &fixture{
		llm:      fake,
		bus:      bus,
		threads:  threads,
		messages: messages,
		chat:     svc,
		thread:   th,
		id:       &identity.Identity{UserID: "u1", SessionID: "s1"},
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Drain(ctx)
	})
	return f
}

func (f *fixture) send(t *testing.T, content string) *chat.SendResult {
	t.Helper()
	result, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{Content: content})
	require.NoError(t, err)
	return result
}

func (f *fixture) list(t *testing.T) []*message.Message {
	t.Helper()
	list, err := f.messages.ListMessages(context.Background(), f.thread.ID)
	require.NoError(t, err)
	return list
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.chat.Drain(ctx))
}

func contents(messages []*message.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestSendMessageStoresUserAndAssistantMessages(t *testing.T) {
	f := newFixture(t, 10)

	result := f.send(t, "  hello  ")

	assert.Equal(t, chat.StateSucceeded, result.State)
	require.NotNil(t, result.UserMessage)
	require.NotNil(t, result.AssistantMessage)
	assert.Equal(t, "hello", result.UserMessage.Content)
	assert.Equal(t, "u1", result.UserMessage.UserID)
	assert.Equal(t, message.RoleAssistant, result.AssistantMessage.Role)
	assert.Equal(t, user.AssistantUserID, result.AssistantMessage.UserID)

	list := f.list(t)
	assert.Equal(t, []string{"hello", "reply 1"}, contents(list))
	assert.False(t, list[0].IsFailed)
}

func TestFirstMessageGeneratesTitle(t *testing.T) {
	f := newFixture(t, 10)

	f.send(t, "plan a trip")
	f.send(t, "to Lisbon")
	f.drain(t)

	th, err := f.threads.GetThread(context.Background(), f.thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "Generated Title", th.ThreadTitle)

	f.llm.mu.Lock()
	defer f.llm.mu.Unlock()
	assert.Equal(t, 1, f.llm.titles)
}

func TestTitleFailureKeepsDefaultTitle(t *testing.T) {
	f := newFixture(t, 10)
	f.llm.title = ""

	result := f.send(t, "hello")
	f.drain(t)

	assert.Equal(t, chat.StateSucceeded, result.State)
	th, err := f.threads.GetThread(context.Background(), f.thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.DefaultTitle, th.ThreadTitle)
}

func TestCompletionFailureMarksUserMessage(t *testing.T) {
	f := newFixture(t, 10)
	f.llm.setFail(errors.New("upstream down"))

	notices := make(chan utils.Event, 1)
	sub := f.bus.Subscribe(chat.NotificationsTopic("u1"), func(e utils.Event) { notices <- e })
	defer sub.Cancel()

	result, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{Content: "hello"})

	assert.ErrorIs(t, err, chat.ErrCompletionFailed)
	require.NotNil(t, result)
	assert.Equal(t, chat.StateFailed, result.State)
	assert.Nil(t, result.AssistantMessage)
	require.NotNil(t, result.UserMessage)
	assert.True(t, result.UserMessage.IsFailed)

	list := f.list(t)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsFailed)

	select {
	case e := <-notices:
		assert.Equal(t, chat.EventFailed, e.Event)
		notice, ok := e.Data.(chat.FailureNotice)
		require.True(t, ok)
		assert.Equal(t, list[0].ID, notice.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure notice")
	}
}

func TestRetryRewritesAndTruncates(t *testing.T) {
	f := newFixture(t, 10)
	first := f.send(t, "U1")
	f.send(t, "U2")
	require.Equal(t, []string{"U1", "reply 1", "U2", "reply 2"}, contents(f.list(t)))

	f.llm.block = make(chan struct{})
	f.llm.entered = make(chan struct{}, 1)
	type outcome struct {
		result *chat.SendResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{
			Content:         "U1 edited",
			IsRetry:         true,
			TargetMessageID: first.UserMessage.ID,
		})
		done <- outcome{result, err}
	}()

	select {
	case <-f.llm.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never reached the model")
	}
	// rewritten and truncated while the new reply is still pending
	assert.Equal(t, []string{"U1 edited"}, contents(f.list(t)))

	close(f.llm.block)
	got := <-done
	require.NoError(t, got.err)

	assert.Equal(t, first.UserMessage.ID, got.result.UserMessage.ID)
	assert.Equal(t, []string{"U1 edited", "reply 3"}, contents(f.list(t)))

	history := f.llm.lastHistory()
	require.Len(t, history, 1)
	assert.Equal(t, llm.Turn{Role: "user", Content: "U1 edited"}, history[0])
}

func TestRetryOfFailedMessageClearsFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.llm.setFail(errors.New("boom"))
	failed, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{Content: "hello"})
	require.ErrorIs(t, err, chat.ErrCompletionFailed)

	f.llm.setFail(nil)
	result, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{
		Content:         "hello",
		IsRetry:         true,
		TargetMessageID: failed.UserMessage.ID,
	})
	require.NoError(t, err)
	assert.False(t, result.UserMessage.IsFailed)

	list := f.list(t)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsFailed)
	assert.Equal(t, message.RoleAssistant, list[1].Role)
}

func TestRetryRejectsInvalidTargets(t *testing.T) {
	f := newFixture(t, 10)
	sent := f.send(t, "U1")
	ctx := context.Background()

	for name, req := range map[string]chat.SendRequest{
		"no target":         {Content: "x", IsRetry: true},
		"assistant message": {Content: "x", IsRetry: true, TargetMessageID: sent.AssistantMessage.ID},
		"unknown message":   {Content: "x", IsRetry: true, TargetMessageID: "missing"},
	} {
		_, err := f.chat.SendMessage(ctx, f.id, f.thread.ID, req)
		assert.ErrorIs(t, err, chat.ErrInvalidRetryTarget, name)
	}

	assert.Equal(t, []string{"U1", "reply 1"}, contents(f.list(t)))
}

func TestSendValidatesInputAndOwnership(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.chat.SendMessage(ctx, f.id, f.thread.ID, chat.SendRequest{Content: "   "})
	assert.ErrorIs(t, err, chat.ErrEmptyContent)

	_, err = f.chat.SendMessage(ctx, f.id, f.thread.ID, chat.SendRequest{Content: strings.Repeat("a", chat.MaxContentSize+1)})
	assert.ErrorIs(t, err, chat.ErrContentTooLong)

	stranger := &identity.Identity{UserID: "u2"}
	_, err = f.chat.SendMessage(ctx, stranger, f.thread.ID, chat.SendRequest{Content: "hi"})
	assert.ErrorIs(t, err, thread.ErrThreadNotFound)

	_, err = f.chat.SendMessage(ctx, f.id, "missing", chat.SendRequest{Content: "hi"})
	assert.ErrorIs(t, err, thread.ErrThreadNotFound)

	assert.Empty(t, f.list(t))

	result, err := f.chat.SendMessage(ctx, f.id, f.thread.ID, chat.SendRequest{Content: strings.Repeat("é", chat.MaxContentSize)})
	require.NoError(t, err)
	assert.Equal(t, chat.StateSucceeded, result.State)
}

func TestContextWindowLimitsHistory(t *testing.T) {
	f := newFixture(t, 3)

	f.send(t, "U1")
	f.send(t, "U2")
	f.send(t, "U3")

	history := f.llm.lastHistory()
	require.Len(t, history, 3)
	assert.Equal(t, []llm.Turn{
		{Role: "user", Content: "U2"},
		{Role: "assistant", Content: "reply 2"},
		{Role: "user", Content: "U3"},
	}, history)
}

func TestSendSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.chat.SendMessage(ctx, f.id, f.thread.ID, chat.SendRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, chat.StateSucceeded, result.State)
	assert.Len(t, f.list(t), 2)
}

func TestConcurrentSendIsRejected(t *testing.T) {
	f := newFixture(t, 10)
	f.llm.block = make(chan struct{})
	f.llm.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{Content: "first"})
		done <- err
	}()

	select {
	case <-f.llm.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first send never reached the model")
	}

	_, err := f.chat.SendMessage(context.Background(), f.id, f.thread.ID, chat.SendRequest{Content: "second"})
	assert.ErrorIs(t, err, chat.ErrSendInProgress)

	w := post(newEngine(f, f.id), f.thread.ID, `{"content":"second"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"sending"`)

	close(f.llm.block)
	require.NoError(t, <-done)

	f.llm.block = nil
	f.llm.entered = nil
	f.send(t, "third")
	assert.Equal(t, []string{"first", "reply 1", "third", "reply 2"}, contents(f.list(t)))
}
