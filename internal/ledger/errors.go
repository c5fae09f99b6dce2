package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Every rejection names the invariant that failed and carries the offending
// values, so callers can decide whether a retry can ever succeed. Match with
// errors.As.

// UnknownAccountError reports an account id that does not exist in the store.
type UnknownAccountError struct {
	ID uuid.UUID
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("account %s not found", e.ID)
}

// DuplicateAccountError reports an attempt to create an account id that
// already exists.
type DuplicateAccountError struct {
	ID uuid.UUID
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("account %s already exists", e.ID)
}

// SelfTransferError reports a transfer whose source equals its destination.
type SelfTransferError struct {
	Account uuid.UUID
}

func (e *SelfTransferError) Error() string {
	return fmt.Sprintf("source and destination are the same account %s", e.Account)
}

// InvalidAmountError reports a non-positive transfer amount.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("transfer amount %s must be greater than 0", e.Amount)
}

// InsufficientFundsError reports a source balance too low for the requested
// amount. The mint account is never subject to this check.
type InsufficientFundsError struct {
	Account uuid.UUID
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("transfer amount %s is more than account %s total of %s", e.Amount, e.Account, e.Balance)
}

// IndexConflictError reports a submitted index that does not equal the
// source's next expected index. It is the optimistic-concurrency signal:
// re-read the metadata and retry with Expected.
type IndexConflictError struct {
	Source    uuid.UUID
	Submitted int64
	Expected  int64
}

func (e *IndexConflictError) Error() string {
	return fmt.Sprintf("transfer index %d for account %s conflicts with expected index %d", e.Submitted, e.Source, e.Expected)
}
