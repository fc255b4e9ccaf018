// Package eventlog 是宿主維護的事件日誌：依提交順序保存核心發出的事件。
// 事件與帳本狀態寫在同一個基底、同一筆交易中，序號因此跨重啟延續；
// 失敗交易的事件永遠不會出現在日誌中。
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger/internal/ledger"
	"ledger/internal/storage"
)

const (
	keyPrefix = "events/"
	keySeq    = keyPrefix + "seq"
)

// recordKey 以固定寬度的序號組成鍵，字典序即提交順序。
func recordKey(seq uint64) string {
	return fmt.Sprintf("%s%020d", keyPrefix, seq)
}

// Record 為日誌中的一筆事件。Seq 從 1 開始連續遞增。
type Record struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	ledger.Event
}

// Log 讀取已提交的事件；寫入一律經由宿主交易 (Append)。
type Log struct {
	r   storage.Reader
	now func() time.Time
}

// New 建立讀取 r 的日誌；r 通常就是帳本的 storage.Backend。
func New(r storage.Reader) *Log {
	return &Log{r: r, now: time.Now}
}

// Append 在交易 kv 中依序寫入一批事件，回傳最後一筆序號。
// 序號計數器也在同一交易中讀寫，兩個宿主同時附加時由提交衝突檢查擋下其一。
func (l *Log) Append(ctx context.Context, kv storage.KV, events ...ledger.Event) (uint64, error) {
	last, err := lastSeq(ctx, kv)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return last, nil
	}
	now := l.now().UTC()
	for _, ev := range events {
		last++
		raw, err := json.Marshal(Record{Seq: last, Time: now, Event: ev})
		if err != nil {
			return 0, fmt.Errorf("encode event %d: %w", last, err)
		}
		if err := kv.Put(ctx, recordKey(last), raw); err != nil {
			return 0, err
		}
	}
	if err := kv.Put(ctx, keySeq, storage.EncodeU64(last)); err != nil {
		return 0, err
	}
	return last, nil
}

// After 回傳序號大於 seq 的事件，最多 limit 筆；limit <= 0 表示不限。
func (l *Log) After(ctx context.Context, seq uint64, limit int) ([]Record, error) {
	last, err := lastSeq(ctx, l.r)
	if err != nil {
		return nil, err
	}
	out := []Record{}
	if seq >= last {
		return out, nil
	}
	for s := seq + 1; s <= last; s++ {
		if limit > 0 && len(out) == limit {
			break
		}
		raw, ok, err := l.r.Get(ctx, recordKey(s))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: event %d missing", storage.ErrCorrupt, s)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", storage.ErrCorrupt, s, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Len 回傳已提交的事件總數，即最後一筆序號。
func (l *Log) Len(ctx context.Context) (uint64, error) {
	return lastSeq(ctx, l.r)
}

func lastSeq(ctx context.Context, r storage.Reader) (uint64, error) {
	raw, ok, err := r.Get(ctx, keySeq)
	if err != nil || !ok {
		return 0, err
	}
	seq, err := storage.DecodeU64(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", keySeq, err)
	}
	return seq, nil
}
