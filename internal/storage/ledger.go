// internal/storage/ledger.go
//
// Ledger 為帳本儲存的型別化存取器：帳戶餘額對應表，以及總供給、
// 發行旗標兩個單例值。缺值一律回傳預設值（餘額 0、旗標 false）。
package storage

import (
	"context"
	"fmt"
)

// DefaultTotalSupply 為未經創世設定時的總供給。
const DefaultTotalSupply uint64 = 21_000_000

// Ledger 透過 KV 讀寫帳本實體。
type Ledger struct {
	kv KV
}

// NewLedger 以 KV（通常是一筆 Tx）建立存取器。
func NewLedger(kv KV) *Ledger {
	return &Ledger{kv: kv}
}

// Balance 回傳帳戶餘額；不存在為 0。
func (l *Ledger) Balance(ctx context.Context, account AccountID) (uint64, error) {
	return l.u64(ctx, BalanceKey(account), 0)
}

// SetBalance 覆寫（或新增）帳戶餘額。
func (l *Ledger) SetBalance(ctx context.Context, account AccountID, value uint64) error {
	return l.kv.Put(ctx, BalanceKey(account), EncodeU64(value))
}

// TotalSupply 回傳總供給；未設定時為 DefaultTotalSupply。
func (l *Ledger) TotalSupply(ctx context.Context) (uint64, error) {
	return l.u64(ctx, keyTotalSupply, DefaultTotalSupply)
}

// Initialized 回傳發行旗標；未設定時為 false。
func (l *Ledger) Initialized(ctx context.Context) (bool, error) {
	raw, ok, err := l.kv.Get(ctx, keyInitialized)
	if err != nil || !ok {
		return false, err
	}
	v, err := decodeBool(raw)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", keyInitialized, err)
	}
	return v, nil
}

// SetInitialized 寫入發行旗標。
func (l *Ledger) SetInitialized(ctx context.Context, v bool) error {
	return l.kv.Put(ctx, keyInitialized, encodeBool(v))
}

func (l *Ledger) u64(ctx context.Context, key string, def uint64) (uint64, error) {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	v, err := DecodeU64(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Genesis 在總供給尚未寫入時寫入 supply。
// 已存在且相同則不動作；不同則回傳 ErrSupplyFixed。
func Genesis(ctx context.Context, b Backend, supply uint64) error {
	if supply == 0 {
		return ErrZeroSupply
	}
	raw, ok, err := b.Get(ctx, keyTotalSupply)
	if err != nil {
		return fmt.Errorf("read total supply: %w", err)
	}
	if ok {
		stored, err := DecodeU64(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", keyTotalSupply, err)
		}
		if stored != supply {
			return fmt.Errorf("%w: stored %d, configured %d", ErrSupplyFixed, stored, supply)
		}
		return nil
	}
	return b.Commit(ctx,
		[]Read{{Key: keyTotalSupply}},
		[]Write{{Key: keyTotalSupply, Value: EncodeU64(supply)}},
	)
}
