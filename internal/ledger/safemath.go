package ledger

import "math/bits"

// checkedSub 回傳 a-b；b > a 時 ok 為 false，不回繞。
func checkedSub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// checkedAdd 回傳 a+b；溢位時 ok 為 false，不回繞。
func checkedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
