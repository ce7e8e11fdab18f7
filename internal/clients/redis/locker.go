package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/scholarport/backend/internal/pkg/ctxutil"
	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/utils"
)

// SessionLocker serializes turns per session across processes. TryLock
// is non-blocking: a held lock means another turn is in flight.
type SessionLocker interface {
	TryLock(ctx context.Context, sessionID string) (bool, error)
	Unlock(ctx context.Context, sessionID string) error
	Close() error
}

type sessionLocker struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewSessionLocker(log *logger.Logger) (SessionLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttlSec := utils.GetEnvAsInt("REDIS_LOCK_TTL_SECONDS", 30, log)
	if ttlSec <= 0 {
		ttlSec = 30
	}
	ttl := time.Duration(ttlSec) * time.Second

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &sessionLocker{
		log: log.With("client", "RedisSessionLocker"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func lockKey(sessionID string) string {
	return "chat:turn_lock:" + sessionID
}

func (sl *sessionLocker) TryLock(ctx context.Context, sessionID string) (bool, error) {
	ctx = ctxutil.Default(ctx)
	ok, err := sl.rdb.SetNX(ctx, lockKey(sessionID), "1", sl.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (sl *sessionLocker) Unlock(ctx context.Context, sessionID string) error {
	ctx = ctxutil.Default(ctx)
	if err := sl.rdb.Del(ctx, lockKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (sl *sessionLocker) Close() error {
	return sl.rdb.Close()
}
