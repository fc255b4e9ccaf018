// internal/storage/memory.go

package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// Memory 為行程內的鍵值基底，可匯出/還原 JSON 快照。
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory 建立空白基底。
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get 實作 Reader。
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Commit 於單一臨界區內檢查讀取集合並套用全部寫入。
func (m *Memory) Commit(ctx context.Context, reads []Read, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reads {
		v, ok := m.data[r.Key]
		if !r.Matches(v, ok) {
			return fmt.Errorf("%w: key %q", ErrConflict, r.Key)
		}
	}
	for _, w := range writes {
		m.data[w.Key] = bytes.Clone(w.Value)
	}
	return nil
}

// Snapshot 匯出目前狀態；鍵依字典序排列，值以 hex 表示。
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		Meta: Meta{Storage: "json_snapshot", Version: snapshotVersion},
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Entries = append(s.Entries, Entry{Key: k, Value: hex.EncodeToString(m.data[k])})
	}
	return s
}

// Restore 以快照取代目前狀態；任何一筆無法解碼則不做變更。
func (m *Memory) Restore(s Snapshot) error {
	if s.Meta.Version > snapshotVersion {
		return fmt.Errorf("snapshot version %d newer than %d", s.Meta.Version, snapshotVersion)
	}
	data := make(map[string][]byte, len(s.Entries))
	for _, e := range s.Entries {
		v, err := hex.DecodeString(e.Value)
		if err != nil {
			return fmt.Errorf("%w: entry %q: %v", ErrCorrupt, e.Key, err)
		}
		data[e.Key] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// Balances 列出所有有紀錄的帳戶餘額（含 0）。
func (m *Memory) Balances() (map[AccountID]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[AccountID]uint64)
	for k, v := range m.data {
		acct, ok := AccountFromKey(k)
		if !ok {
			continue
		}
		bal, err := DecodeU64(v)
		if err != nil {
			return nil, fmt.Errorf("decode balance of %q: %w", acct, err)
		}
		out[acct] = bal
	}
	return out, nil
}
