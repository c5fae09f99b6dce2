package models

import (
	"time"

	"github.com/google/uuid"
)

// MintAccountID is the distinguished service account. It is the source of all
// funding transfers and the only account exempt from the balance-sufficiency
// check. Every collaborator (API, audit, tests) agrees on this value.
var MintAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// Account is a row in the append-only account table. Accounts are created
// once and never updated or deleted; balances are derived from the transfer
// log, never stored here.
type Account struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
