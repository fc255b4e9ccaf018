// internal/storage/tx.go
//
// Tx 是宿主的「全有或全無」狀態交易：寫入先暫存，
// Commit 時才一次交給 Backend；Discard 或失敗則全部丟棄。
// 每個從基底讀到的鍵都記入讀取集合，提交時由基底檢查是否已被他人改寫，
// 因此多個宿主行程共用同一基底時仍是可序列化的。
package storage

import (
	"bytes"
	"context"
)

// Tx 在 Backend 之上暫存寫入；不可並行使用。
type Tx struct {
	backend Backend
	reads   map[string]Read
	rorder  []string
	writes  map[string][]byte
	order   []string
	done    bool
}

// Begin 開始一筆交易。
func Begin(b Backend) *Tx {
	return &Tx{
		backend: b,
		reads:   make(map[string]Read),
		writes:  make(map[string][]byte),
	}
}

// Get 先讀暫存寫入，再讀讀取集合，最後才讀基底。
// 同一鍵在交易內重複讀取會得到第一次讀到的值。
func (t *Tx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	if v, ok := t.writes[key]; ok {
		return bytes.Clone(v), true, nil
	}
	if r, ok := t.reads[key]; ok {
		return bytes.Clone(r.Value), r.Exists, nil
	}
	v, ok, err := t.backend.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	t.reads[key] = Read{Key: key, Value: bytes.Clone(v), Exists: ok}
	t.rorder = append(t.rorder, key)
	return v, ok, nil
}

// Put 暫存一筆寫入；同一鍵以最後一次為準。
func (t *Tx) Put(_ context.Context, key string, value []byte) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = bytes.Clone(value)
	return nil
}

// Pending 回傳暫存寫入筆數。
func (t *Tx) Pending() int {
	return len(t.order)
}

// Reads 回傳讀取集合，依第一次讀取的順序。
func (t *Tx) Reads() []Read {
	out := make([]Read, 0, len(t.rorder))
	for _, k := range t.rorder {
		out = append(out, t.reads[k])
	}
	return out
}

// Commit 依寫入順序提交全部暫存；無寫入時不觸碰基底。
// 讀取集合中的鍵若已被改寫，回傳 ErrConflict 且不套用任何寫入。
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if len(t.order) == 0 {
		return nil
	}
	ws := make([]Write, 0, len(t.order))
	for _, k := range t.order {
		ws = append(ws, Write{Key: k, Value: t.writes[k]})
	}
	return t.backend.Commit(ctx, t.Reads(), ws)
}

// Discard 丟棄所有暫存寫入；可重複呼叫。
func (t *Tx) Discard() {
	t.done = true
	t.reads = nil
	t.rorder = nil
	t.writes = nil
	t.order = nil
}
