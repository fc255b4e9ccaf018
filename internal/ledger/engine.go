// internal/ledger/engine.go

// Package ledger 的狀態轉移引擎：Initialize 與 Transfer。
// 每個操作一律「先讀取、驗證，再寫入」，任何檢查失敗都不會留下部分寫入。
// 引擎本身不加鎖；同一時間只有一筆變更由宿主 (host) 的交易邊界保證。
package ledger

import (
	"context"
	"fmt"
)

// State 是引擎對帳本儲存的全部需求（storage.Ledger 實作）。
type State interface {
	Balance(ctx context.Context, account AccountID) (uint64, error)
	SetBalance(ctx context.Context, account AccountID, value uint64) error
	TotalSupply(ctx context.Context) (uint64, error)
	Initialized(ctx context.Context) (bool, error)
	SetInitialized(ctx context.Context, v bool) error
}

// Engine 綁定單一帳本狀態與事件接收端。
// 宿主通常在每筆交易開始時以交易暫存區建立一個 Engine。
type Engine struct {
	state  State
	events EventSink
}

// NewEngine 建立引擎；events 可為 nil（不發布事件）。
func NewEngine(state State, events EventSink) *Engine {
	return &Engine{state: state, events: events}
}

func (e *Engine) emit(ev Event) {
	if e.events != nil {
		e.events.Emit(ev)
	}
}

// Initialize 將全部總供給發行給呼叫者，僅能成功一次。
// 第二次呼叫回傳 ErrAlreadyInitialized，且不改變任何狀態。
func (e *Engine) Initialize(ctx context.Context, caller Origin) error {
	sender, err := ensureSigned(caller)
	if err != nil {
		return err
	}
	done, err := e.state.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("read init flag: %w", err)
	}
	if done {
		return ErrAlreadyInitialized
	}
	supply, err := e.state.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("read total supply: %w", err)
	}

	if err := e.state.SetBalance(ctx, sender, supply); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	if err := e.state.SetInitialized(ctx, true); err != nil {
		return fmt.Errorf("write init flag: %w", err)
	}
	e.emit(Initialized(sender))
	return nil
}

// Transfer 由呼叫者轉出 amount 給 recipient。
//   - amount 超過餘額 → ErrInsufficientFunds，狀態不變。
//   - 收款方相加溢位 → panic(*ConservationViolation)，狀態不變。
//
// 自我轉帳與零金額轉帳皆允許，餘額不變但仍發出事件。
func (e *Engine) Transfer(ctx context.Context, caller Origin, recipient AccountID, amount uint64) error {
	sender, err := ensureSigned(caller)
	if err != nil {
		return err
	}
	if recipient == "" {
		return ErrBadAccount
	}

	senderBalance, err := e.state.Balance(ctx, sender)
	if err != nil {
		return fmt.Errorf("read sender balance: %w", err)
	}
	recipientBalance, err := e.state.Balance(ctx, recipient)
	if err != nil {
		return fmt.Errorf("read recipient balance: %w", err)
	}

	newSender, ok := checkedSub(senderBalance, amount)
	if !ok {
		return ErrInsufficientFunds
	}
	// 自我轉帳：入帳基準為扣款後餘額，結果回到原值。
	if recipient == sender {
		recipientBalance = newSender
	}
	newRecipient, ok := checkedAdd(recipientBalance, amount)
	if !ok {
		panic(&ConservationViolation{Account: recipient, Balance: recipientBalance, Amount: amount})
	}

	if err := e.state.SetBalance(ctx, sender, newSender); err != nil {
		return fmt.Errorf("write sender balance: %w", err)
	}
	if err := e.state.SetBalance(ctx, recipient, newRecipient); err != nil {
		return fmt.Errorf("write recipient balance: %w", err)
	}
	e.emit(Transferred(sender, recipient, amount))
	return nil
}

// Balance 查詢帳戶餘額；不存在的帳戶為 0。
func (e *Engine) Balance(ctx context.Context, account AccountID) (uint64, error) {
	return e.state.Balance(ctx, account)
}

// TotalSupply 查詢總供給。
func (e *Engine) TotalSupply(ctx context.Context) (uint64, error) {
	return e.state.TotalSupply(ctx)
}

// Initialized 查詢是否已發行。
func (e *Engine) Initialized(ctx context.Context) (bool, error) {
	return e.state.Initialized(ctx)
}
