package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/expense-claims/internal/claim"
)

const summaryQuery = `
SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
FROM expense_claims
GROUP BY status
ORDER BY status`

// SummaryRepository aggregates claims with plain SQL.
type SummaryRepository struct {
	db *sqlx.DB
}

func NewSummaryRepository(db *sqlx.DB) claim.SummaryReader {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Summary(ctx context.Context) ([]claim.StatusSummary, error) {
	rows := []claim.StatusSummary{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(summaryQuery)); err != nil {
		return nil, err
	}
	return rows, nil
}
