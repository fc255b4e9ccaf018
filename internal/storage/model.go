// internal/storage/model.go
//
// 快照 (snapshot) 的序列化格式：Meta 記錄儲存方式與版本，
// Entries 為原始鍵值對，與 Memory 基底一一對應。
package storage

import "time"

const snapshotVersion = 2

// Meta 為快照中繼資料。
type Meta struct {
	Storage   string    `json:"storage"`        // 儲存類型，例如 "json_snapshot"
	Version   int       `json:"version"`        // 格式版本
	Timestamp time.Time `json:"timestamp"`      // 快照建立時間
	Note      string    `json:"note,omitempty"` // 備註
}

// Entry 為一筆鍵值；Value 為 hex 編碼。
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Snapshot 為帳本基底的完整快照。
type Snapshot struct {
	Meta    Meta    `json:"_meta"`
	Entries []Entry `json:"entries"`
}
