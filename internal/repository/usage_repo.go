package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UsageRepo tracks how often each user redeemed a discount.
type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// CountForUser reads the usage count without locking. Missing rows count as
// zero.
func (r *UsageRepo) CountForUser(ctx context.Context, discountID, userID string) (int, error) {
	var usageCount int
	query := `SELECT usage_count FROM discount_usage WHERE discount_id = $1 AND user_id = $2`

	err := r.db.QueryRowContext(ctx, query, discountID, userID).Scan(&usageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, dbError(err, "count discount usage")
	}
	return usageCount, nil
}

// GetAndLockUsage gets or creates the usage row and locks it for the rest
// of tx.
func (r *UsageRepo) GetAndLockUsage(ctx context.Context, tx *sql.Tx, discountID, userID string) (int, error) {
	var usageCount int

	query := `
		SELECT usage_count
		FROM discount_usage
		WHERE discount_id = $1 AND user_id = $2
		FOR UPDATE
	`

	err := tx.QueryRowContext(ctx, query, discountID, userID).Scan(&usageCount)
	if err == nil {
		return usageCount, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, dbError(err, "lock discount usage")
	}

	insert := `
		INSERT INTO discount_usage (discount_id, user_id, usage_count, last_used)
		VALUES ($1, $2, 0, NOW())
		RETURNING usage_count
	`
	if err := tx.QueryRowContext(ctx, insert, discountID, userID).Scan(&usageCount); err != nil {
		return 0, dbError(err, "create discount usage")
	}
	return usageCount, nil
}

// IncrementUsage must run in the tx that locked the row.
func (r *UsageRepo) IncrementUsage(ctx context.Context, tx *sql.Tx, discountID, userID string) error {
	query := `
		UPDATE discount_usage
		SET usage_count = usage_count + 1,
		    last_used = $3
		WHERE discount_id = $1 AND user_id = $2
	`

	if _, err := tx.ExecContext(ctx, query, discountID, userID, time.Now().UTC()); err != nil {
		return dbError(err, "increment discount usage")
	}
	return nil
}
