// internal/server/handler.go
//
// HTTP 處理器：解析請求 → 呼叫引擎 → 回傳 JSON。
// 狀態變更一律經由 s.apply，查詢則走唯讀引擎。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ledger/internal/auth"
	"ledger/internal/ledger"
	"ledger/internal/storage"
)

// maxBodyBytes 限制請求本文大小；轉帳本文只有 {to, amount}。
const maxBodyBytes = 4 << 10

type balanceView struct {
	Account ledger.AccountID `json:"account"`
	Balance uint64           `json:"balance"`
}

// balanceIn 以引擎 e 讀取餘額；在 apply 內呼叫時讀到的是同一交易的結果。
func balanceIn(ctx context.Context, e *ledger.Engine, acct ledger.AccountID) (balanceView, error) {
	bal, err := e.Balance(ctx, acct)
	return balanceView{Account: acct, Balance: bal}, err
}

// initialize 處理 POST /initialize：將總供給發行給呼叫者。
func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	origin := auth.OriginFrom(ctx)
	acct, _ := origin.Account()

	var view balanceView
	err := s.apply(ctx, "initialize", func(e *ledger.Engine) error {
		if err := e.Initialize(ctx, origin); err != nil {
			return err
		}
		var err error
		view, err = balanceIn(ctx, e, acct)
		return err
	})
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// transfer 處理 POST /transfer，JSON {to, amount}；轉出方為已驗證呼叫者。
// 成功後回傳該筆交易提交時的雙方餘額。
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     ledger.AccountID `json:"to"`
		Amount uint64           `json:"amount"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, errors.New("request body too large"), http.StatusRequestEntityTooLarge)
			return
		}
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	req.To = ledger.AccountID(strings.TrimSpace(string(req.To)))

	ctx := r.Context()
	origin := auth.OriginFrom(ctx)
	from, _ := origin.Account()

	var fromView, toView balanceView
	err := s.apply(ctx, "transfer", func(e *ledger.Engine) error {
		if err := e.Transfer(ctx, origin, req.To, req.Amount); err != nil {
			return err
		}
		var err error
		if fromView, err = balanceIn(ctx, e, from); err != nil {
			return err
		}
		toView, err = balanceIn(ctx, e, req.To)
		return err
	})
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "transfer success",
		"amount":  req.Amount,
		"from":    fromView,
		"to":      toView,
	})
}

// balance 處理 GET /accounts/{id}/balance；不存在的帳戶回傳 0。
func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	view, err := balanceIn(r.Context(), s.view(), ledger.AccountID(mux.Vars(r)["id"]))
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// supply 處理 GET /supply：總供給與發行狀態。
func (s *Server) supply(w http.ResponseWriter, r *http.Request) {
	e := s.view()
	total, err := e.TotalSupply(r.Context())
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	done, err := e.Initialized(r.Context())
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_supply": total,
		"initialized":  done,
	})
}

// listEvents 處理 GET /events?after=N&limit=M。
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var after uint64
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeErr(w, errors.New("after must be a non-negative integer"), http.StatusBadRequest)
			return
		}
		after = n
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, errors.New("limit must be a non-negative integer"), http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.events.After(r.Context(), after, limit)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// health 提供健康檢查：GET /health。基底可檢查時一併檢查。
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if hc, ok := s.backend.(healthChecker); ok {
		if err := hc.Health(r.Context()); err != nil {
			s.logger.Warn("storage health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeLedgerErr 將領域錯誤對應為 HTTP 狀態碼。
func (s *Server) writeLedgerErr(w http.ResponseWriter, r *http.Request, err error) {
	var violation *ledger.ConservationViolation
	switch {
	case errors.Is(err, ledger.ErrBadOrigin):
		writeErr(w, err, http.StatusUnauthorized)
	case errors.Is(err, ledger.ErrBadAccount):
		writeErr(w, err, http.StatusBadRequest)
	case errors.Is(err, ledger.ErrAlreadyInitialized), errors.Is(err, ledger.ErrInsufficientFunds):
		writeErr(w, err, http.StatusConflict)
	case errors.Is(err, storage.ErrConflict):
		writeErr(w, errors.New("ledger busy, retry the request"), http.StatusConflict)
	case errors.As(err, &violation):
		writeErr(w, errors.New("internal ledger error"), http.StatusInternalServerError)
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeErr(w, errors.New("internal error"), http.StatusInternalServerError)
	}
}
