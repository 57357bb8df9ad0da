// internal/journal/journal.go
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"questforge/internal/points"
)

var ErrDuplicateTransaction = errors.New("duplicate transaction id")

// Journal is a durable append-only record of ledger transactions over
// Postgres. The in-memory ledger stays the source of truth for a running
// engine; the journal serves audit and rebuild.
type Journal struct {
	db     *sql.DB
	tracer trace.Tracer
}

// New creates a journal over an open database handle.
func New(db *sql.DB) *Journal {
	return &Journal{
		db:     db,
		tracer: otel.Tracer("questforge/journal"),
	}
}

// Append inserts one ledger transaction. Idempotent on transaction ID: a
// replayed append surfaces ErrDuplicateTransaction.
func (j *Journal) Append(ctx context.Context, tx points.Transaction) error {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("transaction.id", tx.ID.String()),
			attribute.Int64("transaction.user_id", tx.UserID),
			attribute.Int64("transaction.delta", tx.Delta),
		),
	)
	defer span.End()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, user_id, delta, balance, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.ID, tx.UserID, tx.Delta, tx.Balance, tx.Source, tx.At.UTC())

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// ListByUser retrieves a user's transactions, oldest first, capped at limit.
func (j *Journal) ListByUser(ctx context.Context, userID int64, limit int) ([]points.Transaction, error) {
	ctx, span := j.tracer.Start(ctx, "journal.list",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, user_id, delta, balance, source, created_at
		FROM ledger_transactions
		WHERE user_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []points.Transaction
	for rows.Next() {
		var tx points.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Delta, &tx.Balance, &tx.Source, &tx.At); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	span.SetAttributes(attribute.Int("transactions.loaded", len(txs)))
	return txs, nil
}

// Balance recomputes a user's balance from the journal; used to audit the
// conservation invariant (balance equals the sum of deltas).
func (j *Journal) Balance(ctx context.Context, userID int64) (int64, error) {
	ctx, span := j.tracer.Start(ctx, "journal.balance",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	var balance int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(delta), 0)
		FROM ledger_transactions
		WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}

	span.SetAttributes(attribute.Int64("balance", balance))
	return balance, nil
}

// EnsureSchema creates the journal table when it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_transactions (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL,
			delta BIGINT NOT NULL,
			balance BIGINT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_transactions_user
			ON ledger_transactions (user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
