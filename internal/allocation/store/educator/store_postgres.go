package educator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"solifund/internal/allocation/models"
	"solifund/internal/allocation/ports"
)

// PostgresStore reads damaged educators from PostgreSQL. RemainingAmount is
// derived in SQL from the capped requested amount minus the educator's
// non-cancelled transaction sum, so a re-run always starts from the persisted
// ledger truth.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed educator provider.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EligibleEducators(ctx context.Context, filter ports.EducatorFilter) ([]models.DamagedEducator, error) {
	globalMax := filter.GlobalMaxDonationAmount
	if globalMax <= 0 {
		globalMax = models.DefaultGlobalMaxDonationAmount
	}

	query := `
		SELECT de.id, de.name, de.account_number, de.period_id, de.school_id, st.code, de.status,
		       de.amount,
		       LEAST(de.amount, $1) - COALESCE(t.allocated, 0) AS remaining
		FROM damaged_educators de
		INNER JOIN damaged_educator_periods p ON p.id = de.period_id AND p.is_active
		INNER JOIN schools sc ON sc.id = de.school_id
		INNER JOIN school_types st ON st.id = sc.school_type_id
		LEFT JOIN (
			SELECT educator_id, SUM(amount) AS allocated
			FROM transactions
			WHERE status <> 'cancelled'
			GROUP BY educator_id
		) t ON t.educator_id = de.id
		WHERE de.status = 'new'
		  AND ($2 = 0 OR st.id = $2)
		  AND (cardinality($3::bigint[]) = 0 OR de.school_id = ANY($3))
		  AND LEAST(de.amount, $1) - COALESCE(t.allocated, 0) > 0
		ORDER BY de.id ASC
	`
	schoolIDs := filter.SchoolIDs
	if schoolIDs == nil {
		schoolIDs = []int64{}
	}
	rows, err := s.db.QueryContext(ctx, query, globalMax, filter.SchoolTypeID, pq.Array(schoolIDs))
	if err != nil {
		return nil, fmt.Errorf("query eligible educators: %w", err)
	}
	defer rows.Close()

	var educators []models.DamagedEducator
	for rows.Next() {
		var e models.DamagedEducator
		if err := rows.Scan(&e.ID, &e.Name, &e.AccountNumber, &e.PeriodID, &e.SchoolID,
			&e.SchoolType, &e.Status, &e.RequestedAmount, &e.RemainingAmount); err != nil {
			return nil, fmt.Errorf("scan educator: %w", err)
		}
		educators = append(educators, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate educators: %w", err)
	}
	return educators, nil
}
