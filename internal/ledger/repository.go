package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centledger/backend/internal/models"
)

// Querier is the subset of *pgxpool.Pool and pgx.Tx the repository runs
// statements against.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// EnsureMintAccount creates the mint account if absent. Idempotent, safe to
// run on every startup.
func (r *Repository) EnsureMintAccount(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO account (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, models.MintAccountID)
	return err
}

// InsertAccount appends a new account row. A unique violation on the id is
// reported as DuplicateAccountError. Pass tx to run inside a transaction.
func (r *Repository) InsertAccount(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	a := models.Account{ID: id}
	err := r.querier(tx).QueryRow(ctx, `
		INSERT INTO account (id) VALUES ($1)
		RETURNING created_at
	`, id).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &DuplicateAccountError{ID: id}
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM account WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

// Metadata computes balance and next expected transfer index for each given
// account in one statement, so the whole answer comes from a single snapshot
// of the transfer log and can never observe a half-committed transfer.
//
// Balance sums transfers committed at or before asOf; the next index counts
// the full outgoing sequence (it is not an as-of quantity). Ids with no
// account row are silently omitted: callers that need per-id failures check
// existence first, so one unknown id cannot fail a whole batch.
func (r *Repository) Metadata(ctx context.Context, ids []uuid.UUID, asOf time.Time) (map[uuid.UUID]models.AccountMetadata, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.destination = a.id AND t.created_at <= $2), 0)
		     - COALESCE(SUM(t.amount) FILTER (WHERE t.source = a.id AND t.created_at <= $2), 0),
		       COUNT(*) FILTER (WHERE t.source = a.id)
		FROM account a
		LEFT JOIN transfer t ON a.id IN (t.source, t.destination)
		WHERE a.id = ANY($1)
		GROUP BY a.id
	`, ids, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[uuid.UUID]models.AccountMetadata, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var m models.AccountMetadata
		if err := rows.Scan(&id, &m.Balance, &m.NextIndex); err != nil {
			return nil, err
		}
		meta[id] = m
	}
	return meta, rows.Err()
}

// InsertTransfer appends t if and only if, against the statement's own
// snapshot, t.Index equals the count of committed transfers from t.Source and
// (for non-mint sources) the source balance covers t.Amount. The checks run
// inside the INSERT itself, so admission and commit are one atomic step.
//
// Returns false when the guard rejected the row or a concurrent appender won
// the (source, index) primary key; the caller re-reads the metadata to tell
// the two apart. On success t.CreatedAt is set from the committed row.
func (r *Repository) InsertTransfer(ctx context.Context, tx pgx.Tx, t *models.Transfer) (bool, error) {
	if tx == nil {
		return r.insertTransfer(ctx, r.pool, t)
	}
	// A unique violation aborts the enclosing transaction, so the attempt
	// runs under a savepoint to keep the transaction retryable.
	inner, err := tx.Begin(ctx)
	if err != nil {
		return false, err
	}
	inserted, err := r.insertTransfer(ctx, inner, t)
	if err != nil || !inserted {
		_ = inner.Rollback(ctx)
		return inserted, err
	}
	return true, inner.Commit(ctx)
}

func (r *Repository) insertTransfer(ctx context.Context, q Querier, t *models.Transfer) (bool, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO transfer (source, index, destination, amount)
		SELECT $1, $2, $3, $4
		WHERE $2 = (SELECT COUNT(*) FROM transfer WHERE source = $1)
		  AND ($1 = $5 OR $4 <= (
				SELECT COALESCE(SUM(CASE WHEN destination = $1 THEN amount ELSE -amount END), 0)
				FROM transfer
				WHERE source = $1 OR destination = $1))
		RETURNING created_at
	`, t.Source, t.Index, t.Destination, t.Amount, models.MintAccountID).Scan(&t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) querier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.pool
}
