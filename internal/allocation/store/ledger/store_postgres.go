package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"solifund/internal/allocation/models"
)

// PostgresStore persists transactions in PostgreSQL. Writes are synchronous
// and immediate, one insert per allocation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (run_id, donor_id, educator_id, account_number, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		tx.RunID, tx.DonorID, tx.EducatorID, tx.AccountNumber, tx.Amount, tx.Status, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) AllocatedTotal(ctx context.Context, donorID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE donor_id = $1 AND status <> 'cancelled'
	`
	var sum int64
	if err := s.db.QueryRowContext(ctx, query, donorID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum donor transactions: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) HasPendingSince(ctx context.Context, donorID int64, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE donor_id = $1
			  AND status IN ('new', 'waiting_confirmation')
			  AND created_at >= $2
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, donorID, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending transactions: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AllocatedToAccountSince(ctx context.Context, donorID int64, accountNumber string, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE donor_id = $1
		  AND account_number = $2
		  AND status <> 'cancelled'
		  AND created_at >= $3
	`
	var sum int64
	if err := s.db.QueryRowContext(ctx, query, donorID, accountNumber, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions to account: %w", err)
	}
	return sum, nil
}
