package main

import (
	"log/slog"
	"net/http"

	"github.com/centledger/backend/internal/handlers"
	"github.com/centledger/backend/internal/ledger"
	"github.com/centledger/backend/internal/middleware"
)

// newRouter wires the HTTP surface: health, account creation, balance
// queries, and transfer submission, all behind the request-ID middleware.
func newRouter(svc ledger.Service, logger *slog.Logger) http.Handler {
	accountHandler := &handlers.AccountHandler{Ledger: svc, Logger: logger}
	transferHandler := &handlers.TransferHandler{Ledger: svc, Logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("POST /accounts", accountHandler.Create)
	mux.HandleFunc("GET /accounts/{id}/balance", accountHandler.GetBalance)
	mux.HandleFunc("POST /transfers", transferHandler.Create)

	return middleware.RequestID(mux)
}
