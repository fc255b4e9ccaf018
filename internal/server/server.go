// internal/server/server.go
//
// Server 是帳本核心的宿主 (host)：驗證呼叫者、序列化狀態變更、
// 以 storage.Tx 提供「全有或全無」交易，並在提交後發布事件與持久化。
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ledger/internal/auth"
	"ledger/internal/eventlog"
	"ledger/internal/ledger"
	"ledger/internal/metrics"
	"ledger/internal/storage"
)

// maxAttempts 為提交衝突時同一操作最多執行的次數。
const maxAttempts = 3

// Deps 為 Server 的外部依賴；Backend 與 Auth 必填，其餘為 nil 時使用預設值。
type Deps struct {
	Backend storage.Backend
	Auth    *auth.Authority
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Persist 於每筆交易成功提交後呼叫，例如寫入 JSON 快照。
	Persist func() error
}

// Server 將帳本引擎接到 HTTP。
type Server struct {
	mu      sync.Mutex // 同一行程內同一時間只允許一筆狀態變更
	backend storage.Backend
	auth    *auth.Authority
	events  *eventlog.Log
	metrics *metrics.Metrics
	logger  *zap.Logger
	persist func() error
}

// NewServer 建立伺服器；事件日誌與帳本共用同一基底。
func NewServer(d Deps) (*Server, error) {
	if d.Backend == nil {
		return nil, errors.New("storage backend is required")
	}
	if d.Auth == nil {
		return nil, errors.New("authority is required")
	}
	s := &Server{
		backend: d.Backend,
		auth:    d.Auth,
		events:  eventlog.New(d.Backend),
		metrics: d.Metrics,
		logger:  d.Logger,
		persist: d.Persist,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Events 回傳事件日誌。
func (s *Server) Events() *eventlog.Log {
	return s.events
}

// apply 在宿主交易中執行 fn：
// 成功 → 提交（含事件）、記錄、持久化；失敗或 ConservationViolation → 丟棄全部寫入。
// 其他宿主先一步改寫了讀過的鍵時 (storage.ErrConflict)，整筆交易重跑，最多 maxAttempts 次。
func (s *Server) apply(ctx context.Context, op string, fn func(*ledger.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		evs, err := s.attempt(ctx, op, fn)
		if errors.Is(err, storage.ErrConflict) && attempt < maxAttempts {
			s.logger.Info("commit conflict, retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			s.metrics.Operation(op, outcomeOf(err))
			return err
		}
		s.metrics.Operation(op, metrics.OutcomeOK)
		s.published(evs)
		if s.persist != nil {
			if err := s.persist(); err != nil {
				s.logger.Warn("persist after commit failed", zap.String("operation", op), zap.Error(err))
			}
		}
		return nil
	}
}

// attempt 執行一次交易。ConservationViolation 在此攔下並轉為錯誤回傳，
// 以 Error 層級記錄並附上堆疊；其他 panic 原樣拋出。
func (s *Server) attempt(ctx context.Context, op string, fn func(*ledger.Engine) error) (evs ledger.Events, err error) {
	tx := storage.Begin(s.backend)
	eng := ledger.NewEngine(storage.NewLedger(tx), &evs)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		tx.Discard()
		v, ok := r.(*ledger.ConservationViolation)
		if !ok {
			panic(r)
		}
		s.logger.Error("ledger conservation broken, transaction aborted",
			zap.String("operation", op),
			zap.String("account", string(v.Account)),
			zap.Uint64("balance", v.Balance),
			zap.Uint64("amount", v.Amount),
			zap.Stack("stack"),
		)
		evs, err = nil, v
	}()

	if err := fn(eng); err != nil {
		tx.Discard()
		return nil, err
	}
	if _, err := s.events.Append(ctx, tx, evs...); err != nil {
		tx.Discard()
		return nil, fmt.Errorf("append events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit %s: %w", op, err)
	}
	return evs, nil
}

// published 記錄已提交事件的指標與日誌。
func (s *Server) published(evs ledger.Events) {
	s.metrics.Events(len(evs))
	for _, ev := range evs {
		if ev.Kind == ledger.KindTransfer {
			s.metrics.Transferred(ev.Amount)
		}
		s.logger.Info("ledger event",
			zap.String("kind", string(ev.Kind)),
			zap.String("account", string(ev.Account)),
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)),
			zap.Uint64("amount", ev.Amount),
		)
	}
}

// view 回傳唯讀引擎；其暫存交易永不提交。
func (s *Server) view() *ledger.Engine {
	return ledger.NewEngine(storage.NewLedger(storage.Begin(s.backend)), nil)
}

func outcomeOf(err error) string {
	var violation *ledger.ConservationViolation
	switch {
	case errors.Is(err, ledger.ErrAlreadyInitialized),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBadOrigin),
		errors.Is(err, ledger.ErrBadAccount):
		return metrics.OutcomeRejected
	case errors.Is(err, storage.ErrConflict):
		return metrics.OutcomeConflict
	case errors.As(err, &violation):
		return metrics.OutcomeViolation
	default:
		return metrics.OutcomeError
	}
}

// healthChecker 由可檢查連線狀態的基底實作（SQLite、Redis）。
type healthChecker interface {
	Health(ctx context.Context) error
}
