// Package ledger 定義帳本核心：一次性發行 (Initialize) 與帳戶間轉帳 (Transfer)。
// 本檔定義帳戶識別與「已驗證呼叫者」(Origin)，不含任何 HTTP 或儲存細節。

package ledger

import "ledger/internal/storage"

// AccountID 識別帳本參與者。
type AccountID = storage.AccountID

// Origin 是宿主 (host) 驗證過的呼叫者身分。
// 只能透過 Signed 產生；零值代表未簽章，核心一律拒絕。
type Origin struct {
	account AccountID
	signed  bool
}

// Signed 由宿主在完成身分驗證後呼叫，取得可傳入核心的呼叫者。
func Signed(account AccountID) Origin {
	return Origin{account: account, signed: account != ""}
}

// Account 回傳呼叫者帳戶；未簽章時 ok 為 false。
func (o Origin) Account() (AccountID, bool) {
	return o.account, o.signed
}

// ensureSigned 取出已簽章呼叫者的帳戶。
func ensureSigned(o Origin) (AccountID, error) {
	acct, ok := o.Account()
	if !ok {
		return "", ErrBadOrigin
	}
	return acct, nil
}
