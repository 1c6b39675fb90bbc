package user

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"echoflow/internal/app/upload"
	"echoflow/internal/providers/redis"

	"go.uber.org/zap"
)

const userCacheTTL = 5 * time.Minute

// sharePattern matches every cached public thread; they embed the owner's
// name and avatar.
const sharePattern = "share:thread:*"

type Service interface {
	GetUser(ctx context.Context, uid string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	MergeProfile(ctx context.Context, uid string, profile Profile) (*User, error)
	EnsureUser(ctx context.Context, user *User) error
	UploadAvatar(ctx context.Context, uid string, file *multipart.FileHeader) (*User, error)
}

type service struct {
	repo      Repository
	uploadSvc upload.Service
	redisP    *redis.RedisProvider
	logger    *zap.SugaredLogger
}

func NewService(repo Repository, uploadSvc upload.Service, redisP *redis.RedisProvider, logger *zap.Logger) Service {
	return &service{
		repo:      repo,
		uploadSvc: uploadSvc,
		redisP:    redisP,
		logger:    logger.Sugar(),
	}
}

func cacheKey(uid string) string {
	return fmt.Sprintf("user:%s", uid)
}

func (s *service) GetUser(ctx context.Context, uid string) (*User, error) {
	var cached User
	if s.redisP.GetJSON(ctx, cacheKey(uid), &cached) {
		return &cached, nil
	}

	user, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	s.redisP.SetJSON(ctx, cacheKey(uid), user, userCacheTTL)
	return user, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *service) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Email != nil {
		email := normalizeEmail(*user.Email)
		user.Email = &email
	}
	user.FullName = strings.TrimSpace(user.FullName)

	if err := s.repo.Create(ctx, user); err != nil {
		return err
	}
	s.logger.Infow("User created", "uid", user.UID)
	return nil
}

func (s *service) MergeProfile(ctx context.Context, uid string, profile Profile) (*User, error) {
	current, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	// only fields that differ from the stored record are written
	fields := map[string]interface{}{}
	if email := normalizeEmail(profile.Email); email != "" && email != current.EmailAddress() {
		fields["email"] = email
	}
	if name := strings.TrimSpace(profile.FullName); name != "" && name != current.FullName {
		fields["full_name"] = name
	}
	if avatar := strings.TrimSpace(profile.AvatarURL); avatar != "" && avatar != current.AvatarURL {
		fields["avatar_url"] = avatar
	}
	if len(fields) == 0 {
		return current, nil
	}

	if err := s.repo.Update(ctx, uid, fields); err != nil {
		return nil, fmt.Errorf("failed to merge profile: %w", err)
	}
	s.invalidate(ctx, uid)

	return s.repo.GetByID(ctx, uid)
}

func (s *service) EnsureUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return s.repo.EnsureExists(ctx, user)
}

func (s *service) UploadAvatar(ctx context.Context, uid string, file *multipart.FileHeader) (*User, error) {
	current, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.uploadSvc.UploadImage(ctx, file, "avatars/"+uid)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, uid, map[string]interface{}{"avatar_url": uploaded.URL}); err != nil {
		s.uploadSvc.Remove(ctx, uploaded.URL)
		return nil, fmt.Errorf("failed to save avatar: %w", err)
	}
	s.invalidate(ctx, uid)
	s.uploadSvc.Remove(ctx, current.AvatarURL)

	s.logger.Infow("Avatar updated", "uid", uid, "object_name", uploaded.ObjectName)
	return s.repo.GetByID(ctx, uid)
}

func (s *service) invalidate(ctx context.Context, uid string) {
	s.redisP.Del(ctx, cacheKey(uid))
	s.redisP.DeletePattern(ctx, sharePattern)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
