package ledger

// EventKind 區分領域事件種類。
type EventKind string

const (
	KindInitialized EventKind = "initialized"
	KindTransfer    EventKind = "transfer"
)

// Event 為成功狀態轉移發出的結構化通知。
// 發行事件使用 Account；轉帳事件使用 From、To 與 Amount。
type Event struct {
	Kind    EventKind `json:"kind"`
	Account AccountID `json:"account,omitempty"`
	From    AccountID `json:"from,omitempty"`
	To      AccountID `json:"to,omitempty"`
	Amount  uint64    `json:"amount"`
}

// Initialized 建立發行事件。
func Initialized(account AccountID) Event {
	return Event{Kind: KindInitialized, Account: account}
}

// Transferred 建立轉帳事件 (from, to, value)。
func Transferred(from, to AccountID, amount uint64) Event {
	return Event{Kind: KindTransfer, From: from, To: to, Amount: amount}
}

// EventSink 接收核心發出的事件；核心不會讀回。
type EventSink interface {
	Emit(Event)
}

// Events 依序收集事件，供宿主在交易提交後一次發布。
type Events []Event

// Emit 實作 EventSink。
func (e *Events) Emit(ev Event) {
	*e = append(*e, ev)
}
