// Package ledger is the consistency engine of the transfer log: an
// append-only record of transfers between accounts, with balances derived
// from the log rather than stored. Admission of a transfer is validated
// inside the same atomic statement that inserts it, and the (source, index)
// primary key resolves races between concurrent appenders for the same
// source. Transfers from different sources never block each other; no
// operation ever locks two accounts at once.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/centledger/backend/internal/models"
)

// mintFundingAttempts bounds internal retries when concurrent account
// creations race for the mint account's next index.
const mintFundingAttempts = 5

// Store is the persistence contract the service validates against. Unknown
// ids are omitted from Metadata results; InsertTransfer reports guarded
// rejection (stale index, insufficient balance, or a lost index race) as
// inserted == false.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	EnsureMintAccount(ctx context.Context) error
	InsertAccount(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Metadata(ctx context.Context, ids []uuid.UUID, asOf time.Time) (map[uuid.UUID]models.AccountMetadata, error)
	InsertTransfer(ctx context.Context, tx pgx.Tx, t *models.Transfer) (bool, error)
}

type Service interface {
	Bootstrap(ctx context.Context) error
	CreateFundedAccount(ctx context.Context, id uuid.UUID, initial decimal.Decimal) (*models.Account, *models.Transfer, error)
	Metadata(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.AccountMetadata, error)
	AppendTransfer(ctx context.Context, source uuid.UUID, index int64, destination uuid.UUID, amount decimal.Decimal) (*models.Transfer, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

// Bootstrap ensures the mint account exists. Idempotent across restarts.
func (s *service) Bootstrap(ctx context.Context) error {
	return s.store.EnsureMintAccount(ctx)
}

// Metadata returns the account's balance as of asOf (zero value means now)
// and its next expected transfer index.
func (s *service) Metadata(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.AccountMetadata, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	meta, err := s.store.Metadata(ctx, []uuid.UUID{id}, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	m, ok := meta[id]
	if !ok {
		return nil, &UnknownAccountError{ID: id}
	}
	return &m, nil
}

// AppendTransfer admits and commits one transfer. Static rules are checked
// up front; the index and balance rules are re-checked by the store inside
// the atomic insert itself, so a stale read between validation and commit
// cannot slip a bad row in. A rejected transfer leaves no trace in the log.
func (s *service) AppendTransfer(ctx context.Context, source uuid.UUID, index int64, destination uuid.UUID, amount decimal.Decimal) (*models.Transfer, error) {
	if amount.Sign() <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}
	if source == destination {
		return nil, &SelfTransferError{Account: source}
	}
	for _, id := range []uuid.UUID{source, destination} {
		exists, err := s.store.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check account %s: %w", id, err)
		}
		if !exists {
			return nil, &UnknownAccountError{ID: id}
		}
	}

	t := &models.Transfer{
		Source:      source,
		Index:       index,
		Destination: destination,
		Amount:      amount,
	}
	inserted, err := s.store.InsertTransfer(ctx, nil, t)
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	if !inserted {
		return nil, s.rejection(ctx, source, index, amount)
	}
	return t, nil
}

// rejection distinguishes the two reasons a guarded insert can refuse a row.
// The index rule is checked before the balance rule, matching admission
// order.
func (s *service) rejection(ctx context.Context, source uuid.UUID, index int64, amount decimal.Decimal) error {
	meta, err := s.store.Metadata(ctx, []uuid.UUID{source}, time.Now())
	if err != nil {
		return fmt.Errorf("classify rejected transfer: %w", err)
	}
	m, ok := meta[source]
	if !ok {
		return &UnknownAccountError{ID: source}
	}
	if index != m.NextIndex {
		return &IndexConflictError{Source: source, Submitted: index, Expected: m.NextIndex}
	}
	if m.Balance.LessThan(amount) {
		return &InsufficientFundsError{Account: source, Balance: m.Balance, Amount: amount}
	}
	// The re-read already passes both rules, so the log moved between the
	// rejected insert and this read: an index race, and retryable as one.
	return &IndexConflictError{Source: source, Submitted: index, Expected: m.NextIndex}
}

// CreateFundedAccount creates the account and, for a non-zero initial
// balance, funds it with a transfer from the mint account through the normal
// append path. The mint account is exempt from the balance rule, which is
// what allows unbounded funding. Both steps run in one transaction; racing
// creations contend only on the mint index, retried a bounded number of
// times.
func (s *service) CreateFundedAccount(ctx context.Context, id uuid.UUID, initial decimal.Decimal) (*models.Account, *models.Transfer, error) {
	if initial.Sign() < 0 {
		return nil, nil, &InvalidAmountError{Amount: initial}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := s.store.InsertAccount(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	var funding *models.Transfer
	if initial.Sign() > 0 {
		funding, err = s.fundFromMint(ctx, tx, id, initial)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return account, funding, nil
}

func (s *service) fundFromMint(ctx context.Context, tx pgx.Tx, destination uuid.UUID, amount decimal.Decimal) (*models.Transfer, error) {
	for attempt := 0; attempt < mintFundingAttempts; attempt++ {
		meta, err := s.store.Metadata(ctx, []uuid.UUID{models.MintAccountID}, time.Now())
		if err != nil {
			return nil, fmt.Errorf("fetch mint metadata: %w", err)
		}
		mint, ok := meta[models.MintAccountID]
		if !ok {
			return nil, &UnknownAccountError{ID: models.MintAccountID}
		}

		t := &models.Transfer{
			Source:      models.MintAccountID,
			Index:       mint.NextIndex,
			Destination: destination,
			Amount:      amount,
		}
		inserted, err := s.store.InsertTransfer(ctx, tx, t)
		if err != nil {
			return nil, fmt.Errorf("insert funding transfer: %w", err)
		}
		if inserted {
			return t, nil
		}
		// Lost the mint index to a concurrent funding; re-read and retry.
	}
	return nil, &IndexConflictError{Source: models.MintAccountID}
}
