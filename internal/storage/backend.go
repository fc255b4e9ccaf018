// internal/storage/backend.go
//
// 鍵值儲存基底 (substrate) 的契約。帳本只透過 Get 讀取、透過 Commit
// 一次套用整批寫入；實作可為記憶體、SQLite 或 Redis。
package storage

import (
	"bytes"
	"context"
	"errors"
)

// AccountID 為帳戶識別：不透明、可比較、每帳戶唯一。
type AccountID string

var (
	// ErrTxDone 代表交易已提交或已丟棄。
	ErrTxDone = errors.New("transaction already finished")

	// ErrCorrupt 代表儲存值長度或格式不符。
	ErrCorrupt = errors.New("corrupt stored value")

	// ErrZeroSupply 代表創世總供給為 0。
	ErrZeroSupply = errors.New("total supply must be > 0")

	// ErrSupplyFixed 代表已存在的總供給與設定值不同；總供給創世後不可修改。
	ErrSupplyFixed = errors.New("total supply already fixed at genesis")

	// ErrConflict 代表交易讀過的鍵在提交前已被其他寫入者修改。
	// 交易內容全部丟棄，宿主可重新執行整筆交易。
	ErrConflict = errors.New("concurrent write conflict")
)

// Reader 讀取單一鍵；不存在時 ok 為 false。
type Reader interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}

// Write 為一筆待提交寫入。
type Write struct {
	Key   string
	Value []byte
}

// Read 為交易讀過的一個鍵及當時觀察到的值；Exists 為 false 代表當時不存在。
type Read struct {
	Key    string
	Value  []byte
	Exists bool
}

// Matches 回報目前的值是否仍與交易讀到的相同。
func (r Read) Matches(value []byte, exists bool) bool {
	if r.Exists != exists {
		return false
	}
	return !exists || bytes.Equal(r.Value, value)
}

// Backend 為持久化基底。Commit 必須全有或全無：
// reads 中任何一個鍵的值已改變時回傳 ErrConflict，且不套用任何寫入。
type Backend interface {
	Reader
	Commit(ctx context.Context, reads []Read, writes []Write) error
}

// KV 為帳本存取器使用的讀寫介面（Tx 實作）。
type KV interface {
	Reader
	Put(ctx context.Context, key string, value []byte) error
}
