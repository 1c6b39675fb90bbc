package message

import (
	"context"
	"fmt"
	"time"

	"echoflow/internal/app/thread"
	"echoflow/internal/metrics"
	"echoflow/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const snapshotTimeout = 10 * time.Second

type Service interface {
	// SubscribeMessagesForThread calls callback with the thread's messages in
	// chronological order, right away and after every change. A failed read
	// is delivered as an empty list.
	SubscribeMessagesForThread(threadID string, callback func([]*Message)) *utils.Subscription
	ListMessages(ctx context.Context, threadID string) ([]*Message, error)
	// GetRecentMessages returns the newest limit messages, oldest first.
	GetRecentMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)
	AddMessage(ctx context.Context, threadID string, msg NewMessage) (*Message, error)
	UpdateMessageContent(ctx context.Context, threadID, messageID, content string) error
	// DeleteMessagesFrom deletes startMessageID and everything after it.
	DeleteMessagesFrom(ctx context.Context, threadID, startMessageID string) error
	SetMessageFailedStatus(ctx context.Context, threadID, messageID string, failed bool) error
	GetMessage(ctx context.Context, threadID, messageID string) (*Message, error)
	// GetMessageAfter returns the message that follows messageID, or nil
	// when messageID is the last one.
	GetMessageAfter(ctx context.Context, threadID, messageID string) (*Message, error)
	CountMessages(ctx context.Context, threadID string) (int64, error)
}

type service struct {
	repo      Repository
	threadSvc thread.Service
	eventBus  *utils.EventBus
	logger    *zap.SugaredLogger
}

func NewService(repo Repository, threadSvc thread.Service, eventBus *utils.EventBus, logger *zap.Logger) Service {
	return &service{
		repo:      repo,
		threadSvc: threadSvc,
		eventBus:  eventBus,
		logger:    logger.Sugar(),
	}
}

func (s *service) SubscribeMessagesForThread(threadID string, callback func([]*Message)) *utils.Subscription {
	sub := s.eventBus.Subscribe(thread.TopicForThread(threadID), func(utils.Event) {
		callback(s.snapshot(threadID))
	})
	sub.Notify(EventSnapshot, nil)
	return sub
}

func (s *service) snapshot(threadID string) []*Message {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	messages, err := s.repo.ListByThread(ctx, threadID)
	if err != nil {
		s.logger.Errorw("Failed to load messages for subscription", "thread_id", threadID, "error", err)
		return []*Message{}
	}
	return messages
}

func (s *service) ListMessages(ctx context.Context, threadID string) ([]*Message, error) {
	messages, err := s.repo.ListByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *service) GetRecentMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		return []*Message{}, nil
	}
	messages, err := s.repo.ListRecent(ctx, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return messages, nil
}

func (s *service) AddMessage(ctx context.Context, threadID string, in NewMessage) (*Message, error) {
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	msg := &Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		UserID:    in.UserID,
		Role:      in.Role,
		Content:   in.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	metrics.MessagesCreatedTotal.WithLabelValues(string(msg.Role)).Inc()
	s.changed(ctx, threadID, EventAdded, msg)
	return msg, nil
}

func (s *service) UpdateMessageContent(ctx context.Context, threadID, messageID, content string) error {
	if err := s.repo.UpdateContent(ctx, threadID, messageID, content); err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	s.changed(ctx, threadID, EventUpdated, map[string]string{"id": messageID})
	return nil
}

func (s *service) DeleteMessagesFrom(ctx context.Context, threadID, startMessageID string) error {
	start, err := s.repo.GetByID(ctx, threadID, startMessageID)
	if err != nil {
		return err
	}

	removed, err := s.repo.DeleteFromSeq(ctx, threadID, start.Seq)
	if err != nil {
		return fmt.Errorf("failed to truncate thread: %w", err)
	}

	s.logger.Infow("Thread truncated", "thread_id", threadID, "from", startMessageID, "removed", removed)
	s.changed(ctx, threadID, EventTruncate, map[string]string{"from": startMessageID})
	return nil
}

func (s *service) SetMessageFailedStatus(ctx context.Context, threadID, messageID string, failed bool) error {
	if err := s.repo.SetFailed(ctx, threadID, messageID, failed); err != nil {
		return fmt.Errorf("failed to set failed status: %w", err)
	}
	s.changed(ctx, threadID, EventFailed, map[string]interface{}{"id": messageID, "isFailed": failed})
	return nil
}

func (s *service) GetMessage(ctx context.Context, threadID, messageID string) (*Message, error) {
	return s.repo.GetByID(ctx, threadID, messageID)
}

func (s *service) GetMessageAfter(ctx context.Context, threadID, messageID string) (*Message, error) {
	msg, err := s.repo.GetByID(ctx, threadID, messageID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetNext(ctx, threadID, msg.Seq)
}

func (s *service) CountMessages(ctx context.Context, threadID string) (int64, error) {
	return s.repo.CountByThread(ctx, threadID)
}

// changed refreshes the parent thread and notifies message subscribers.
func (s *service) changed(ctx context.Context, threadID, event string, data interface{}) {
	if err := s.threadSvc.Touch(ctx, threadID); err != nil {
		s.logger.Warnw("Failed to touch thread", "thread_id", threadID, "event", event, "error", err)
	}
	s.eventBus.Publish(thread.TopicForThread(threadID), event, data)
}
