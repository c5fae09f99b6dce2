package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/centledger/backend/internal/ledger"
	"github.com/centledger/backend/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		RequestID: middleware.RequestIDFromCtx(r.Context()),
		Error:     msg,
	})
}

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses:
// unknown account 404, index conflict 409, every other rejection 400.
// Anything outside the taxonomy is a 500 with the detail kept server-side.
func writeLedgerError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		unknown      *ledger.UnknownAccountError
		duplicate    *ledger.DuplicateAccountError
		self         *ledger.SelfTransferError
		invalid      *ledger.InvalidAmountError
		insufficient *ledger.InsufficientFundsError
		conflict     *ledger.IndexConflictError
	)
	switch {
	case errors.As(err, &unknown):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &duplicate), errors.As(err, &self), errors.As(err, &invalid), errors.As(err, &insufficient):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		logger.Error("ledger operation failed",
			"request_id", middleware.RequestIDFromCtx(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
