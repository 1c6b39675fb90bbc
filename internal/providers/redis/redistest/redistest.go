// Package redistest backs a RedisProvider with an in-process miniredis.
package redistest

import (
	"testing"
	"time"

	"echoflow/internal/providers/redis"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func New(t testing.TB) (*redis.RedisProvider, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	provider := redis.NewRedisProvider("redis://"+mr.Addr(), zap.NewNop(), time.Minute)
	t.Cleanup(func() { provider.Close() })
	return provider, mr
}
