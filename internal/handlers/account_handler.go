package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centledger/backend/internal/ledger"
)

// AccountHandler serves account creation and balance queries.
type AccountHandler struct {
	Ledger ledger.Service
	Logger *slog.Logger
}

type createAccountRequest struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

type accountBalanceResponse struct {
	AccountID uuid.UUID       `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	NextIndex int64           `json:"next_transfer_index"`
}

// Create handles POST /accounts: create the account and, for a positive
// initial balance, fund it from the mint account. The returned balance is
// read back as of the funding transfer's commit time.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(r, accountSchema, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := uuid.Parse(req.AccountID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account_id")
		return
	}
	if req.Balance.Sign() < 0 {
		writeError(w, r, http.StatusBadRequest, "a new account balance should be greater or equal to 0")
		return
	}

	account, funding, err := h.Ledger.CreateFundedAccount(r.Context(), id, req.Balance)
	if err != nil {
		writeLedgerError(w, r, h.Logger, err)
		return
	}

	asOf := account.CreatedAt
	if funding != nil {
		asOf = funding.CreatedAt
	}
	meta, err := h.Ledger.Metadata(r.Context(), id, asOf)
	if err != nil {
		writeLedgerError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountBalanceResponse{
		AccountID: id,
		Balance:   meta.Balance,
		NextIndex: meta.NextIndex,
	})
}

// GetBalance handles GET /accounts/{id}/balance?as_of=<RFC3339>. Without
// as_of it reports the live balance; with it, the balance as of that instant.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "as_of must be an RFC 3339 timestamp")
			return
		}
	}

	meta, err := h.Ledger.Metadata(r.Context(), id, asOf)
	if err != nil {
		writeLedgerError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, accountBalanceResponse{
		AccountID: id,
		Balance:   meta.Balance,
		NextIndex: meta.NextIndex,
	})
}
