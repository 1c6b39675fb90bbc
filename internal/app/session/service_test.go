package session_test

import (
	"context"
	"testing"
	"time"

	"echoflow/internal/app/session"
	"echoflow/internal/app/upload"
	"echoflow/internal/app/user"
	"echoflow/internal/db/dbtest"
	"echoflow/internal/providers/redis/redistest"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "test-secret"

type fixture struct {
	mr       *miniredis.Miniredis
	users    user.Service
	sessions session.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	redisP, mr := redistest.New(t)
	users := user.NewService(user.NewRepository(conn), upload.NewService(nil, zap.NewNop()), redisP, zap.NewNop())
	return &fixture{
		mr:    mr,
		users: users,
		sessions: session.NewService(
			session.NewRepository(conn),
			users,
			session.NewTokenIssuer(secret, time.Hour),
			redisP,
			zap.NewNop(),
		),
	}
}

var meta = session.ClientMeta{UserAgent: "go-test", IP: "127.0.0.1"}

func TestSignUpAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.sessions.SignUp(ctx, session.SignUpRequest{
		Email:    " Ada@Example.com ",
		Password: "hunter22",
		FullName: "Ada",
	}, meta)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, "Ada", resp.User.FullName)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	id, err := f.sessions.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.UID, id.UserID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.True(t, f.mr.Exists("session:"+id.SessionID))
}

func TestSignUpDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := session.SignUpRequest{Email: "ada@example.com", Password: "hunter22"}

	_, err := f.sessions.SignUp(ctx, req, meta)
	require.NoError(t, err)

	req.Email = "ADA@example.com"
	_, err = f.sessions.SignUp(ctx, req, meta)
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sessions.SignUp(ctx, session.SignUpRequest{Email: "ada@example.com", Password: "hunter22"}, meta)
	require.NoError(t, err)
	require.NoError(t, f.mr.Set("share:thread:t1", "{}"))

	resp, err := f.sessions.SignIn(ctx, session.SignInRequest{Email: "ADA@example.com", Password: "hunter22"}, meta)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	// signing in with the stored email changes nothing, so public views stay cached
	assert.True(t, f.mr.Exists("share:thread:t1"))

	_, err = f.sessions.SignIn(ctx, session.SignInRequest{Email: "ada@example.com", Password: "wrong"}, meta)
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, err = f.sessions.SignIn(ctx, session.SignInRequest{Email: "nobody@example.com", Password: "hunter22"}, meta)
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestSignOutEndsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.sessions.SignUp(ctx, session.SignUpRequest{Email: "ada@example.com", Password: "hunter22"}, meta)
	require.NoError(t, err)

	id, err := f.sessions.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	require.NoError(t, f.sessions.SignOut(ctx, id))
	assert.False(t, f.mr.Exists("session:"+id.SessionID))

	_, err = f.sessions.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, session.ErrSessionEnded)
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, session.ErrInvalidToken)

	forged, _, err := session.NewTokenIssuer("other-secret", time.Hour).Issue("u1", "s1", "")
	require.NoError(t, err)
	_, err = f.sessions.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, session.ErrInvalidToken)

	unknown, _, err := session.NewTokenIssuer(secret, time.Hour).Issue("u1", "no-such-session", "")
	require.NoError(t, err)
	_, err = f.sessions.Authenticate(ctx, unknown)
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestTokenIssuer(t *testing.T) {
	issuer := session.NewTokenIssuer(secret, time.Hour)

	token, expiresAt, err := issuer.Issue("u1", "s1", "ada@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, "ada@example.com", claims.Email)

	expired, _, err := session.NewTokenIssuer(secret, -time.Minute).Issue("u1", "s1", "")
	require.NoError(t, err)
	_, err = issuer.Parse(expired)
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := session.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, session.ComparePassword(hash, "hunter22"))
	assert.False(t, session.ComparePassword(hash, "hunter23"))
}
