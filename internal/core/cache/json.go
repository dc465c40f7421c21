package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const nullValue = "null"

// Entry 一类 JSON 缓存项：prefix:id → T
// Miss 非 nil 时，回源返回 Miss 会缓存空值（MissTTL，默认 30s），防止不存在的 id 反复打库
type Entry[T any] struct {
	Prefix  string
	TTL     time.Duration
	Miss    error
	MissTTL time.Duration
}

func (e Entry[T]) Key(id string) string { return e.Prefix + ":" + id }

func (e Entry[T]) missTTL() time.Duration {
	if e.MissTTL > 0 {
		return e.MissTTL
	}
	return 30 * time.Second
}

// Get c 为 nil 时直接回源
func (e Entry[T]) Get(ctx context.Context, c *Cache, id string, load func(context.Context) (*T, error)) (*T, error) {
	if c == nil {
		return load(ctx)
	}
	key := e.Key(id)
	b, err := c.GetOrLoad(ctx, key, e.TTL, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			if e.Miss != nil && errors.Is(err, e.Miss) {
				_ = c.RDB.Set(ctx, key, nullValue, e.missTTL()).Err()
			}
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	if string(b) == nullValue {
		return nil, e.Miss
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		// 脏数据直接丢弃，下次回源
		_ = c.Delete(ctx, key)
		return nil, err
	}
	return &out, nil
}

// Forget 写操作之后删除对应 id
func (e Entry[T]) Forget(ctx context.Context, c *Cache, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, e.Key(id))
	}
	return c.Delete(ctx, keys...)
}
