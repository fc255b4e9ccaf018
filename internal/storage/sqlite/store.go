// Package sqlite 提供以 SQLite 為後端的帳本基底。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ledger/internal/storage"
	"ledger/internal/storage/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Store 將帳本鍵值保存在單一 SQLite 資料表。
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Backend = (*Store)(nil)

// Open 開啟（或建立）path 上的資料庫並套用內嵌 migration。
// ":memory:" 開啟私有的記憶體資料庫。
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// :memory: 每條連線各自一份，只保留一條。
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close 關閉 SQLite 連線。
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get 實作 storage.Reader。
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx, "SELECT value FROM ledger_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Commit 在單一 SQL 交易中重新讀取讀取集合並 upsert 全部寫入。
// 檔案資料庫以 BEGIN IMMEDIATE 開始交易，多個行程共用同一檔案時，
// 比對與寫入都在寫入鎖之下進行。
func (s *Store) Commit(ctx context.Context, reads []storage.Read, writes []storage.Write) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	for _, r := range reads {
		var value []byte
		err := tx.QueryRowContext(ctx, "SELECT value FROM ledger_kv WHERE key = ?", r.Key).Scan(&value)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("check %s: %w", r.Key, err)
		}
		if !r.Matches(value, exists) {
			_ = tx.Rollback()
			return fmt.Errorf("%w: key %q", storage.ErrConflict, r.Key)
		}
	}
	now := time.Now().UTC().UnixMilli()
	for _, w := range writes {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			w.Key, w.Value, now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put %s: %w", w.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Health 以 ping 檢查資料庫。
func (s *Store) Health(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}
