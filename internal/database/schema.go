// Package database owns the ledger schema and applies it idempotently at
// startup.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Both tables are append-only: rows are inserted once and never updated or
// deleted. The (source, index) primary key on transfer is load-bearing: it is
// the uniqueness constraint that resolves races between concurrent appenders
// for the same source. The created_at indexes serve the as-of metadata
// aggregation.
const schema = `
CREATE TABLE IF NOT EXISTS account (
	id         uuid PRIMARY KEY,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transfer (
	source      uuid NOT NULL REFERENCES account (id),
	index       bigint NOT NULL CHECK (index >= 0),
	destination uuid NOT NULL REFERENCES account (id),
	amount      numeric NOT NULL CHECK (amount > 0),
	created_at  timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (source, index),
	CHECK (source <> destination)
);

CREATE INDEX IF NOT EXISTS transfer_source_created_at_idx
	ON transfer (source, created_at);
CREATE INDEX IF NOT EXISTS transfer_destination_created_at_idx
	ON transfer (destination, created_at);
`

// Migrate creates the ledger tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}
