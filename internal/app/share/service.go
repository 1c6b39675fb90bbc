package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echoflow/internal/app/message"
	"echoflow/internal/app/thread"
	"echoflow/internal/app/user"
	"echoflow/internal/providers/redis"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shareCacheTTL = 2 * time.Minute

type Service interface {
	// GetPublicThreadData returns nil when the thread does not exist or is
	// not public.
	GetPublicThreadData(ctx context.Context, threadID string) (*PublicThread, error)
}

type service struct {
	threadSvc  thread.Service
	messageSvc message.Service
	userSvc    user.Service
	redisP     *redis.RedisProvider
	logger     *zap.SugaredLogger
}

func NewService(
	threadSvc thread.Service,
	messageSvc message.Service,
	userSvc user.Service,
	redisP *redis.RedisProvider,
	logger *zap.Logger,
) Service {
	return &service{
		threadSvc:  threadSvc,
		messageSvc: messageSvc,
		userSvc:    userSvc,
		redisP:     redisP,
		logger:     logger.Sugar(),
	}
}

func (s *service) GetPublicThreadData(ctx context.Context, threadID string) (*PublicThread, error) {
	// visibility is always read from the store, never from the cache
	th, err := s.threadSvc.GetThread(ctx, threadID)
	if errors.Is(err, thread.ErrThreadNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	if !th.IsPublic {
		return nil, nil
	}

	cacheKey := thread.PublicCacheKey(threadID, th.UpdatedAt)
	var cached PublicThread
	if s.redisP.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var (
		messages []*message.Message
		owner    PublicUser
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		messages, err = s.messageSvc.ListMessages(gctx, threadID)
		return err
	})
	g.Go(func() error {
		u, err := s.userSvc.GetUser(gctx, th.UserID)
		if errors.Is(err, user.ErrUserNotFound) {
			owner = PublicUser{
				FullName:  PlaceholderName,
				AvatarURL: user.DefaultAvatarURL(th.UserID),
			}
			return nil
		}
		if err != nil {
			return err
		}
		resp := u.ToResponse()
		owner = PublicUser{FullName: resp.FullName, AvatarURL: resp.AvatarURL}
		if owner.FullName == "" {
			owner.FullName = PlaceholderName
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble public thread: %w", err)
	}

	public := &PublicThread{
		ID:          th.ID,
		ThreadTitle: th.ThreadTitle,
		CreatedAt:   th.CreatedAt,
		Messages:    make([]PublicMessage, 0, len(messages)),
		User:        owner,
	}
	for _, m := range messages {
		public.Messages = append(public.Messages, PublicMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	s.redisP.SetJSON(ctx, cacheKey, public, shareCacheTTL)
	return public, nil
}
