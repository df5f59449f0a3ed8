package donor

import (
	"context"
	"database/sql"
	"fmt"

	"solifund/internal/allocation/models"
)

// PostgresStore reads eligible donors from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed donor provider.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EligibleDonors returns active, verified donors at or above the eligibility
// floor, ordered by pledge descending. The ascending-id tie break keeps the
// processing order deterministic for equal pledges.
func (s *PostgresStore) EligibleDonors(ctx context.Context) ([]models.Donor, error) {
	query := `
		SELECT ud.id, u.email, u.is_active, u.is_email_verified, ud.amount, ud.only_university
		FROM user_donors ud
		INNER JOIN users u ON u.id = ud.user_id
		WHERE u.is_active
		  AND u.is_email_verified
		  AND ud.amount >= $1
		ORDER BY ud.amount DESC, ud.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, models.MinEligiblePledge)
	if err != nil {
		return nil, fmt.Errorf("query eligible donors: %w", err)
	}
	defer rows.Close()

	var donors []models.Donor
	for rows.Next() {
		var d models.Donor
		if err := rows.Scan(&d.ID, &d.Email, &d.Active, &d.EmailVerified, &d.PledgeAmount, &d.OnlyUniversity); err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		donors = append(donors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return donors, nil
}
