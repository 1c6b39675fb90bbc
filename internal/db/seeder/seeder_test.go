package seeder_test

import (
	"context"
	"testing"

	"echoflow/internal/app/user"
	"echoflow/internal/db/dbtest"
	"echoflow/internal/db/seeder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedCreatesAssistantOnce(t *testing.T) {
	conn := dbtest.New(t)
	s := seeder.NewSeeder(conn, zap.NewNop())

	require.NoError(t, s.Seed(context.Background()))
	require.NoError(t, s.Seed(context.Background()))

	var users []user.User
	require.NoError(t, conn.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, user.AssistantUserID, users[0].UID)
	assert.Equal(t, user.AssistantName, users[0].FullName)
}
