package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/entitlement/internal/config"
)

const keyRecordApp = "entitlement:record:app:%s"

// RecordLimiter throttles consumption recording per application. A nil
// limiter (no Redis configured) allows everything, so single-node setups run
// without Redis.
type RecordLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewRecordLimiter(cfg config.Config) *RecordLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.RecordRate <= 0 || cfg.RecordBurst <= 0 {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &RecordLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.RecordRate,
		burst:   cfg.RecordBurst,
	}
}

func (l *RecordLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *RecordLimiter) AllowApplication(ctx context.Context, applicationID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRecordApp, strings.TrimSpace(applicationID)), l.rate, l.burst)
}
