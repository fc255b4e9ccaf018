// internal/server/router.go
//
// 路由註冊。同一組端點同時掛在根路徑與 /api/v1 之下。
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router 建立並回傳整個 HTTP 處理鏈。
func (s *Server) Router() http.Handler {
	root := mux.NewRouter()
	root.Use(s.observe)

	s.routes(root.PathPrefix("/api/v1").Subrouter())
	s.routes(root)

	root.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return root
}

func (s *Server) routes(r *mux.Router) {
	//   - GET /health
	//   - GET /supply
	//   - GET /accounts/{id}/balance
	//   - GET /events?after=N&limit=M
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/supply", s.supply).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/balance", s.balance).Methods(http.MethodGet)
	r.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)

	// 需要已驗證呼叫者：
	//   - POST /initialize
	//   - POST /transfer
	signed := r.NewRoute().Subrouter()
	signed.Use(s.requireOrigin)
	signed.HandleFunc("/initialize", s.initialize).Methods(http.MethodPost)
	signed.HandleFunc("/transfer", s.transfer).Methods(http.MethodPost)
}
