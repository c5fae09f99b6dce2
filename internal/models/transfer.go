package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is a committed row in the transfer log. (Source, Index) is the
// primary key: Index is the zero-based, gapless position of this transfer in
// the source account's outgoing sequence.
type Transfer struct {
	Source      uuid.UUID       `json:"source"`
	Index       int64           `json:"index"`
	Destination uuid.UUID       `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AccountMetadata is the derived view of one account: balance and the index
// the next outgoing transfer must carry. Both are pure functions of the
// transfer log.
type AccountMetadata struct {
	Balance   decimal.Decimal `json:"balance"`
	NextIndex int64           `json:"next_transfer_index"`
}
