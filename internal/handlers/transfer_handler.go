package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centledger/backend/internal/ledger"
	"github.com/centledger/backend/internal/models"
)

// transferAttempts bounds how often a request re-reads the next index after
// losing an index race before the conflict is surfaced to the client.
const transferAttempts = 3

// TransferHandler serves transfer submission.
type TransferHandler struct {
	Ledger ledger.Service
	Logger *slog.Logger
}

type createTransferRequest struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	Transfer           *models.Transfer `json:"transfer"`
	SourceBalance      decimal.Decimal  `json:"source_balance"`
	DestinationBalance decimal.Decimal  `json:"destination_balance"`
}

// Create handles POST /transfers. The next index for the source is read just
// before the append; a lost index race is retried with a fresh index a
// bounded number of times, the designed response to IndexConflict.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := decodeBody(r, transferSchema, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	source, err := uuid.Parse(req.Source)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid source")
		return
	}
	destination, err := uuid.Parse(req.Destination)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid destination")
		return
	}
	// Only funding appends may draw on the mint account.
	if source == models.MintAccountID {
		writeError(w, r, http.StatusBadRequest, "the mint account cannot be used as a transfer source")
		return
	}

	var transfer *models.Transfer
	for attempt := 0; attempt < transferAttempts; attempt++ {
		meta, err := h.Ledger.Metadata(r.Context(), source, time.Time{})
		if err != nil {
			writeLedgerError(w, r, h.Logger, err)
			return
		}
		transfer, err = h.Ledger.AppendTransfer(r.Context(), source, meta.NextIndex, destination, req.Amount)
		if err == nil {
			break
		}
		var conflict *ledger.IndexConflictError
		if errors.As(err, &conflict) && attempt < transferAttempts-1 {
			continue
		}
		writeLedgerError(w, r, h.Logger, err)
		return
	}

	sourceMeta, err := h.Ledger.Metadata(r.Context(), source, transfer.CreatedAt)
	if err != nil {
		writeLedgerError(w, r, h.Logger, err)
		return
	}
	destinationMeta, err := h.Ledger.Metadata(r.Context(), destination, transfer.CreatedAt)
	if err != nil {
		writeLedgerError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, transferResponse{
		Transfer:           transfer,
		SourceBalance:      sourceMeta.Balance,
		DestinationBalance: destinationMeta.Balance,
	})
}
