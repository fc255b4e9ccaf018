// internal/storage/jsonstore.go
//
// JSON 快照讀寫。寫入採原子方式：先寫 .tmp 檔，再以 rename 取代原檔。
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// LoadSnapshot 讀取 path 的 JSON 快照。
// 檔案不存在時回傳 os.ErrNotExist（可用 errors.Is 判斷）。
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// SaveSnapshot 將快照寫入 path+".tmp" 後 rename 成 path。
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Storage = "json_snapshot"
	snap.Meta.Timestamp = time.Now().UTC()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return errors.Join(err, os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadMemory 由快照檔還原 m；檔案不存在時保留空白狀態。
func LoadMemory(path string, m *Memory) error {
	snap, err := LoadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.Restore(snap)
}
