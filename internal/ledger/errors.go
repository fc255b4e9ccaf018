// internal/ledger/errors.go
//
// 領域錯誤 (domain errors)。一般錯誤由上層轉成 HTTP 狀態碼；
// ConservationViolation 屬於不變量損毀，以 panic 拋出，由宿主中止交易。

package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInitialized 代表總供給已發行過。
	// 對應 HTTP 狀態碼 409 Conflict。
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrInsufficientFunds 代表轉帳金額超過轉出帳戶餘額。
	// 對應 HTTP 狀態碼 409 Conflict。
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBadOrigin 代表呼叫者未經宿主驗證。
	// 對應 HTTP 狀態碼 401 Unauthorized。
	ErrBadOrigin = errors.New("origin is not signed")

	// ErrBadAccount 代表收款帳戶識別為空。
	// 對應 HTTP 狀態碼 400 Bad Request。
	ErrBadAccount = errors.New("account id is required")
)

// ConservationViolation 表示收款方餘額相加會溢位 64 位元。
// 正確發行下不可能發生；出現即代表帳本已損毀。
type ConservationViolation struct {
	Account AccountID
	Balance uint64
	Amount  uint64
}

func (v *ConservationViolation) Error() string {
	return fmt.Sprintf("conservation violation: balance %d of %q cannot absorb %d", v.Balance, v.Account, v.Amount)
}
