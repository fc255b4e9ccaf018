package storage

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	balancePrefix  = "balances/"
	keyTotalSupply = "total_supply"
	keyInitialized = "init"
)

// BalanceKey 回傳帳戶餘額的儲存鍵：前綴 + blake2b-128(帳戶) + 帳戶原文。
// 雜湊前綴讓鍵均勻分布，保留原文以便從鍵還原帳戶。
func BalanceKey(account AccountID) string {
	h, _ := blake2b.New(16, nil) // 無金鑰的 16 位元組雜湊不會失敗
	h.Write([]byte(account))
	return balancePrefix + hex.EncodeToString(h.Sum(nil)) + string(account)
}

// AccountFromKey 由餘額鍵還原帳戶；非餘額鍵回傳 false。
func AccountFromKey(key string) (AccountID, bool) {
	const hashLen = 32 // 16 位元組的 hex
	if len(key) <= len(balancePrefix)+hashLen || key[:len(balancePrefix)] != balancePrefix {
		return "", false
	}
	acct := AccountID(key[len(balancePrefix)+hashLen:])
	if BalanceKey(acct) != key {
		return "", false
	}
	return acct, true
}

// EncodeU64 以 8 位元組 big-endian 編碼。
func EncodeU64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// DecodeU64 解碼 EncodeU64 的結果；長度不符回傳 ErrCorrupt。
func DecodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: u64 of %d bytes", ErrCorrupt, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func decodeBool(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("%w: bool %x", ErrCorrupt, b)
	}
	return b[0] == 1, nil
}
