package thread

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"echoflow/internal/metrics"
	"echoflow/internal/providers/redis"
	"echoflow/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const snapshotTimeout = 10 * time.Second

type Service interface {
	// SubscribeThreadsForUser calls callback with the user's threads, newest
	// activity first, right away and after every change. A failed read is
	// delivered as an empty list.
	SubscribeThreadsForUser(userID string, callback func([]*Thread)) *utils.Subscription
	ListThreadsForUser(ctx context.Context, userID string) ([]*Thread, error)
	CreateThread(ctx context.Context, userID string) (*Thread, error)
	UpdateThread(ctx context.Context, threadID string, patch Patch) (*Thread, error)
	DeleteThreadAndMessages(ctx context.Context, threadID string) error
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	GetOwnedThread(ctx context.Context, userID, threadID string) (*Thread, error)
	// Touch refreshes updatedAt after a change to one of the thread's
	// messages. The new updatedAt also retires the cached public view.
	Touch(ctx context.Context, threadID string) error
}

type service struct {
	repo     Repository
	redisP   *redis.RedisProvider
	eventBus *utils.EventBus
	logger   *zap.SugaredLogger
}

func NewService(repo Repository, redisP *redis.RedisProvider, eventBus *utils.EventBus, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		redisP:   redisP,
		eventBus: eventBus,
		logger:   logger.Sugar(),
	}
}

func (s *service) SubscribeThreadsForUser(userID string, callback func([]*Thread)) *utils.Subscription {
	sub := s.eventBus.Subscribe(TopicForUser(userID), func(utils.Event) {
		callback(s.snapshot(userID))
	})
	sub.Notify(EventSnapshot, nil)
	return sub
}

func (s *service) snapshot(userID string) []*Thread {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	threads, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Errorw("Failed to load threads for subscription", "user_id", userID, "error", err)
		return []*Thread{}
	}
	return threads
}

func (s *service) ListThreadsForUser(ctx context.Context, userID string) ([]*Thread, error) {
	threads, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

func (s *service) CreateThread(ctx context.Context, userID string) (*Thread, error) {
	now := time.Now().UTC()
	thread := &Thread{
		ID:          uuid.NewString(),
		UserID:      userID,
		ThreadTitle: DefaultTitle,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsPublic:    false,
	}
	if err := s.repo.Create(ctx, thread); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	metrics.ThreadsCreatedTotal.Inc()
	s.logger.Infow("Thread created", "thread_id", thread.ID, "user_id", userID)
	s.eventBus.Publish(TopicForUser(userID), EventCreated, thread)
	return thread, nil
}

func (s *service) UpdateThread(ctx context.Context, threadID string, patch Patch) (*Thread, error) {
	fields := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if patch.ThreadTitle != nil {
		title := strings.TrimSpace(*patch.ThreadTitle)
		if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
			return nil, ErrInvalidTitle
		}
		fields["thread_title"] = title
	}
	if patch.IsPublic != nil {
		fields["is_public"] = *patch.IsPublic
	}

	if err := s.repo.Update(ctx, threadID, fields); err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}

	thread, err := s.repo.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(TopicForUser(thread.UserID), EventUpdated, thread)
	return thread, nil
}

// DeleteThreadAndMessages runs two independent statements. If the second
// one fails the thread is left without messages.
func (s *service) DeleteThreadAndMessages(ctx context.Context, threadID string) error {
	thread, err := s.repo.GetByID(ctx, threadID)
	if err != nil {
		return err
	}

	removed, err := s.repo.DeleteMessages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := s.repo.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}

	s.logger.Infow("Thread deleted", "thread_id", threadID, "user_id", thread.UserID, "messages", removed)
	s.redisP.DeletePattern(ctx, PublicCachePattern(threadID))
	s.eventBus.Publish(TopicForThread(threadID), EventDeleted, map[string]string{"threadId": threadID})
	s.eventBus.Publish(TopicForUser(thread.UserID), EventDeleted, map[string]string{"threadId": threadID})
	return nil
}

func (s *service) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	return s.repo.GetByID(ctx, threadID)
}

func (s *service) GetOwnedThread(ctx context.Context, userID, threadID string) (*Thread, error) {
	thread, err := s.repo.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	// someone else's thread looks exactly like a missing one
	if thread.UserID != userID {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}

func (s *service) Touch(ctx context.Context, threadID string) error {
	if err := s.repo.Update(ctx, threadID, map[string]interface{}{"updated_at": time.Now().UTC()}); err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}

	thread, err := s.repo.GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	s.eventBus.Publish(TopicForUser(thread.UserID), EventTouched, thread)
	return nil
}
