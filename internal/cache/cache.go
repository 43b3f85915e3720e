// Package cache は講師プロフィールの読み取りキャッシュを提供する。
// REDIS_URLが未設定の場合はNoopStoreを使用し、常にキャッシュミスとして扱う。
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss はキーがキャッシュに存在しないことを示す。
var ErrMiss = errors.New("cache miss")

// Store はキャッシュのインターフェース。
type Store interface {
	// Get はキーの値を取得する。存在しない場合はErrMissを返す。
	Get(ctx context.Context, key string) ([]byte, error)
	// Set はキーに値をTTL付きで保存する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete は指定キーを削除する。存在しないキーは無視する。
	Delete(ctx context.Context, keys ...string) error
	// Ping は接続を確認する。
	Ping(ctx context.Context) error
	// Close は接続を閉じる。
	Close() error
}

// RedisStore はRedisをバックエンドとするStore。
// キーには名前空間を前置する。
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore はredis://形式のURLからRedisStoreを生成する。
func NewRedisStore(redisURL, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opts), namespace), nil
}

// NewRedisStoreFromClient は既存のクライアントからRedisStoreを生成する。
func NewRedisStoreFromClient(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Get はキーの値を取得する。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return b, nil
}

// Set はキーに値を保存する。
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// Ping はRedisへの接続を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NoopStore は何も保存しないStore。
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoopStore) Delete(context.Context, ...string) error                  { return nil }
func (NoopStore) Ping(context.Context) error                               { return nil }
func (NoopStore) Close() error                                             { return nil }

// compile-time interface check
var (
	_ Store = (*RedisStore)(nil)
	_ Store = NoopStore{}
)
