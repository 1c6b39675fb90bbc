package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/user"
	"echoflow/internal/providers/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionCacheTTL = 10 * time.Minute

type Service interface {
	SignUp(ctx context.Context, req SignUpRequest, meta ClientMeta) (*AuthResponse, error)
	SignIn(ctx context.Context, req SignInRequest, meta ClientMeta) (*AuthResponse, error)
	SignOut(ctx context.Context, id *identity.Identity) error
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

type service struct {
	repo    Repository
	userSvc user.Service
	tokens  *TokenIssuer
	redisP  *redis.RedisProvider
	logger  *zap.SugaredLogger
}

func NewService(repo Repository, userSvc user.Service, tokens *TokenIssuer, redisP *redis.RedisProvider, logger *zap.Logger) Service {
	return &service{
		repo:    repo,
		userSvc: userSvc,
		tokens:  tokens,
		redisP:  redisP,
		logger:  logger.Sugar(),
	}
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (s *service) SignUp(ctx context.Context, req SignUpRequest, meta ClientMeta) (*AuthResponse, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	email := req.Email
	u := &user.User{
		UID:          uuid.NewString(),
		Email:        &email,
		FullName:     req.FullName,
		PasswordHash: hash,
	}
	if err := s.userSvc.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return s.startSession(ctx, u, meta)
}

func (s *service) SignIn(ctx context.Context, req SignInRequest, meta ClientMeta) (*AuthResponse, error) {
	u, err := s.userSvc.GetByEmail(ctx, req.Email)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || !ComparePassword(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	u, err = s.userSvc.MergeProfile(ctx, u.UID, user.Profile{Email: req.Email})
	if err != nil {
		return nil, err
	}

	return s.startSession(ctx, u, meta)
}

func (s *service) startSession(ctx context.Context, u *user.User, meta ClientMeta) (*AuthResponse, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    u.UID,
		StartedAt: now,
		IP:        meta.IP,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if meta.UserAgent != "" {
		sess.UserAgent = &meta.UserAgent
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(u.UID, sess.ID, u.EmailAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Infow("Session started", "uid", u.UID, "session_id", sess.ID, "ip", meta.IP)
	return &AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      u.ToResponse(),
	}, nil
}

func (s *service) SignOut(ctx context.Context, id *identity.Identity) error {
	if err := s.repo.EndSession(ctx, id.SessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.redisP.Del(ctx, cacheKey(id.SessionID))
	s.logger.Infow("Session ended", "uid", id.UserID, "session_id", id.SessionID)
	return nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*identity.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	id := &identity.Identity{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Email:     claims.Email,
	}

	if n, err := s.redisP.Exists(ctx, cacheKey(claims.SessionID)).Result(); err == nil && n > 0 {
		return id, nil
	}

	sess, err := s.repo.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.EndedAt != nil {
		return nil, ErrSessionEnded
	}
	if sess.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	ttl := sessionCacheTTL
	if remaining := time.Until(claims.ExpiresAt.Time); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		s.redisP.SetEX(ctx, cacheKey(claims.SessionID), "1", ttl)
	}
	return id, nil
}
