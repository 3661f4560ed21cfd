package cache

import (
	"context"
	"time"
)

// BytesCache — байтовый кэш best-effort: недоступность кэша не должна
// превращаться в ошибку бизнес-операции.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
