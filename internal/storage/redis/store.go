// Package redis 提供以 Redis 為後端的帳本基底。
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"ledger/internal/storage"
)

// DefaultPrefix 為共用 Redis 資料庫中帳本鍵的命名空間。
const DefaultPrefix = "ledger:"

// Store 以一般 Redis 字串保存帳本鍵值。
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ storage.Backend = (*Store)(nil)

// New 包裝既有 client；prefix 為空時使用 DefaultPrefix。
func New(client redis.UniversalClient, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Dial 連線到 addr 並以 PING 確認連線。
func Dial(ctx context.Context, addr, prefix string) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client, prefix)
}

// Close 關閉底層 client。
func (s *Store) Close() error {
	return s.client.Close()
}

// Get 實作 storage.Reader。
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Commit 先 WATCH 讀取集合並逐一比對，再以單一 MULTI/EXEC 套用全部寫入。
// 讀過的鍵被其他 client 改寫時回傳 storage.ErrConflict。
func (s *Store) Commit(ctx context.Context, reads []storage.Read, writes []storage.Write) error {
	keys := make([]string, 0, len(reads))
	for _, r := range reads {
		keys = append(keys, s.prefix+r.Key)
	}
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		for _, r := range reads {
			v, err := tx.Get(ctx, s.prefix+r.Key).Bytes()
			exists := true
			if errors.Is(err, redis.Nil) {
				exists = false
			} else if err != nil {
				return fmt.Errorf("check %s: %w", r.Key, err)
			}
			if !r.Matches(v, exists) {
				return fmt.Errorf("%w: key %q", storage.ErrConflict, r.Key)
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range writes {
				pipe.Set(ctx, s.prefix+w.Key, w.Value, 0)
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: watched key changed", storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("commit %d writes: %w", len(writes), err)
	}
	return nil
}

// Health 以 PING 檢查伺服器。
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
