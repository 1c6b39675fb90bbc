package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/message"
	"echoflow/internal/app/thread"
	"echoflow/internal/app/user"
	"echoflow/internal/metrics"
	"echoflow/internal/providers/llm"
	"echoflow/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	// SendMessage appends (or, for a retry, rewrites) a user message and the
	// assistant's reply. On ErrCompletionFailed the returned result carries
	// the user message, already marked failed.
	SendMessage(ctx context.Context, id *identity.Identity, threadID string, req SendRequest) (*SendResult, error)
	// Drain waits for background title generation to finish.
	Drain(ctx context.Context) error
}

type service struct {
	threadSvc  thread.Service
	messageSvc message.Service
	llm        llm.Provider
	eventBus   *utils.EventBus
	opts       Options
	logger     *zap.SugaredLogger

	mu       sync.Mutex
	inFlight map[string]struct{}
	titles   sync.WaitGroup
}

func NewService(
	threadSvc thread.Service,
	messageSvc message.Service,
	provider llm.Provider,
	eventBus *utils.EventBus,
	opts Options,
	logger *zap.Logger,
) Service {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 10
	}
	return &service{
		threadSvc:  threadSvc,
		messageSvc: messageSvc,
		llm:        provider,
		eventBus:   eventBus,
		opts:       opts,
		logger:     logger.Sugar(),
		inFlight:   make(map[string]struct{}),
	}
}

func (s *service) SendMessage(ctx context.Context, id *identity.Identity, threadID string, req SendRequest) (*SendResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentSize {
		return nil, ErrContentTooLong
	}
	if req.IsRetry && req.TargetMessageID == "" {
		return nil, ErrInvalidRetryTarget
	}

	// the reply is stored even if the client goes away mid-request
	ctx = context.WithoutCancel(ctx)

	if _, err := s.threadSvc.GetOwnedThread(ctx, id.UserID, threadID); err != nil {
		return nil, err
	}

	if !s.acquire(threadID) {
		metrics.SendsTotal.WithLabelValues("rejected", strconv.FormatBool(req.IsRetry)).Inc()
		return nil, ErrSendInProgress
	}
	defer s.release(threadID)

	var (
		userMsg *message.Message
		err     error
	)
	if req.IsRetry {
		userMsg, err = s.rewrite(ctx, threadID, req.TargetMessageID, content)
		if err != nil && userMsg == nil {
			if errors.Is(err, message.ErrMessageNotFound) {
				return nil, ErrInvalidRetryTarget
			}
			return nil, err
		}
	} else {
		userMsg, err = s.append(ctx, id, threadID, content)
		if err != nil {
			return nil, err
		}
	}
	if err != nil {
		return s.fail(ctx, id, userMsg, req.IsRetry, err)
	}

	reply, err := s.complete(ctx, threadID)
	if err != nil {
		return s.fail(ctx, id, userMsg, req.IsRetry, err)
	}

	assistantMsg, err := s.messageSvc.AddMessage(ctx, threadID, message.NewMessage{
		UserID:  user.AssistantUserID,
		Role:    message.RoleAssistant,
		Content: reply,
	})
	if err != nil {
		return s.fail(ctx, id, userMsg, req.IsRetry, err)
	}

	metrics.SendsTotal.WithLabelValues(string(StateSucceeded), strconv.FormatBool(req.IsRetry)).Inc()
	return &SendResult{
		State:            StateSucceeded,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// append stores a new user message and starts title generation when it is
// the first message of the thread.
func (s *service) append(ctx context.Context, id *identity.Identity, threadID, content string) (*message.Message, error) {
	count, err := s.messageSvc.CountMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	msg, err := s.messageSvc.AddMessage(ctx, threadID, message.NewMessage{
		UserID:  id.UserID,
		Role:    message.RoleUser,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	if count == 0 {
		s.generateTitle(threadID, content)
	}
	return msg, nil
}

// rewrite edits the target message and drops everything after it. A nil
// message means nothing was changed; a non-nil message with an error means
// the thread is half rewritten.
func (s *service) rewrite(ctx context.Context, threadID, targetID, content string) (*message.Message, error) {
	target, err := s.messageSvc.GetMessage(ctx, threadID, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role != message.RoleUser {
		return nil, ErrInvalidRetryTarget
	}

	if err := s.messageSvc.UpdateMessageContent(ctx, threadID, targetID, content); err != nil {
		return target, err
	}
	target.Content = content

	if target.IsFailed {
		if err := s.messageSvc.SetMessageFailedStatus(ctx, threadID, targetID, false); err != nil {
			return target, err
		}
		target.IsFailed = false
	}

	next, err := s.messageSvc.GetMessageAfter(ctx, threadID, targetID)
	if err != nil {
		return target, err
	}
	if next != nil {
		if err := s.messageSvc.DeleteMessagesFrom(ctx, threadID, next.ID); err != nil {
			return target, err
		}
	}
	return target, nil
}

func (s *service) complete(ctx context.Context, threadID string) (string, error) {
	history, err := s.messageSvc.GetRecentMessages(ctx, threadID, s.opts.ContextWindow)
	if err != nil {
		return "", err
	}

	turns := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, llm.Turn{Role: string(m.Role), Content: m.Content})
	}

	if s.opts.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.LLMTimeout)
		defer cancel()
	}
	return s.llm.GenerateChatResponse(ctx, turns)
}

func (s *service) fail(ctx context.Context, id *identity.Identity, userMsg *message.Message, retry bool, cause error) (*SendResult, error) {
	s.logger.Errorw("Send failed", "thread_id", userMsg.ThreadID, "message_id", userMsg.ID, "retry", retry, "error", cause)

	if err := s.messageSvc.SetMessageFailedStatus(ctx, userMsg.ThreadID, userMsg.ID, true); err != nil {
		s.logger.Errorw("Failed to mark message as failed", "message_id", userMsg.ID, "error", err)
	} else {
		userMsg.IsFailed = true
	}

	s.eventBus.Publish(NotificationsTopic(id.UserID), EventFailed, FailureNotice{
		ThreadID:  userMsg.ThreadID,
		MessageID: userMsg.ID,
		Error:     ErrCompletionFailed.Error(),
		At:        time.Now().UTC(),
	})

	metrics.SendsTotal.WithLabelValues(string(StateFailed), strconv.FormatBool(retry)).Inc()
	return &SendResult{
		State:       StateFailed,
		UserMessage: userMsg,
		Error:       ErrCompletionFailed.Error(),
	}, fmt.Errorf("%w: %v", ErrCompletionFailed, cause)
}

// generateTitle runs detached from the send. Its outcome is only logged.
func (s *service) generateTitle(threadID, firstMessage string) {
	s.titles.Add(1)
	go func() {
		defer s.titles.Done()

		ctx := context.Background()
		if s.opts.TitleTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.TitleTimeout)
			defer cancel()
		}

		title, err := s.llm.GenerateThreadTitle(ctx, firstMessage)
		if err != nil {
			metrics.TitleGenerationsTotal.WithLabelValues("failed").Inc()
			s.logger.Warnw("Title generation failed", "thread_id", threadID, "error", err)
			return
		}

		if _, err := s.threadSvc.UpdateThread(ctx, threadID, thread.Patch{ThreadTitle: &title}); err != nil {
			metrics.TitleGenerationsTotal.WithLabelValues("failed").Inc()
			s.logger.Warnw("Failed to apply generated title", "thread_id", threadID, "error", err)
			return
		}
		metrics.TitleGenerationsTotal.WithLabelValues("succeeded").Inc()
		s.logger.Debugw("Thread title generated", "thread_id", threadID, "title", title)
	}()
}

func (s *service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.titles.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) acquire(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[threadID]; busy {
		return false
	}
	s.inFlight[threadID] = struct{}{}
	return true
}

func (s *service) release(threadID string) {
	s.mu.Lock()
	delete(s.inFlight, threadID)
	s.mu.Unlock()
}
