package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ledger/internal/auth"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder 記錄處理器寫出的狀態碼。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// observe 記錄每個請求的 request ID、存取日誌與 HTTP 指標。
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		d := time.Since(start)
		path := routePath(r)
		s.metrics.HTTPRequest(r.Method, path, strconv.Itoa(rec.status), d)
		s.logger.Debug("http request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", rec.status),
			zap.Duration("duration", d),
		)
	})
}

// requireOrigin 驗證 Bearer token；未通過者不會進入引擎。
func (s *Server) requireOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeErr(w, errors.New("missing bearer token"), http.StatusUnauthorized)
			return
		}
		origin, err := s.auth.Verify(token)
		if err != nil {
			s.logger.Debug("token rejected", zap.Error(err))
			writeErr(w, auth.ErrInvalidToken, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOrigin(r.Context(), origin)))
	})
}
