package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const discountColumns = `
	id, code, description, discount_type, discount_value,
	maximum_discount, minimum_order_amount, usage_limit, usage_limit_per_user,
	usage_count, is_active, start_date, end_date, auto_apply, show_badge,
	applicable_products, applicable_variants, applicable_categories,
	created_at, updated_at, created_by`

type DiscountRepo struct {
	db *sql.DB
}

func NewDiscountRepo(db *sql.DB) *DiscountRepo {
	return &DiscountRepo{db: db}
}

// GetByCode returns nil, nil when no discount has the code.
func (r *DiscountRepo) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	query := `SELECT ` + discountColumns + ` FROM discount_codes WHERE code = $1`
	return r.getOne(ctx, r.db, query, models.CanonicalCode(code))
}

// GetByID returns nil, nil when the id is unknown.
func (r *DiscountRepo) GetByID(ctx context.Context, id string) (*models.DiscountCode, error) {
	query := `SELECT ` + discountColumns + ` FROM discount_codes WHERE id = $1`
	return r.getOne(ctx, r.db, query, id)
}

// LockByID reads the discount inside tx with a row lock.
func (r *DiscountRepo) LockByID(ctx context.Context, tx *sql.Tx, id string) (*models.DiscountCode, error) {
	query := `SELECT ` + discountColumns + ` FROM discount_codes WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, tx, query, id)
}

// ListAutoApply returns the active auto-apply discounts inside their date
// window at now, oldest first.
func (r *DiscountRepo) ListAutoApply(ctx context.Context, now time.Time) ([]models.DiscountCode, error) {
	query := `SELECT ` + discountColumns + `
		FROM discount_codes
		WHERE is_active = TRUE
		  AND auto_apply = TRUE
		  AND (start_date IS NULL OR start_date <= $1)
		  AND (end_date IS NULL OR end_date >= $1)
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, dbError(err, "list auto-apply discounts")
	}
	defer rows.Close()

	list := []models.DiscountCode{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, dbError(err, "scan discount")
		}
		list = append(list, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate discounts")
	}
	return list, nil
}

// Create inserts d and fills its id and timestamps.
func (r *DiscountRepo) Create(ctx context.Context, d *models.DiscountCode) error {
	query := `
		INSERT INTO discount_codes
		(code, description, discount_type, discount_value, maximum_discount,
		 minimum_order_amount, usage_limit, usage_limit_per_user, usage_count,
		 is_active, start_date, end_date, auto_apply, show_badge,
		 applicable_products, applicable_variants, applicable_categories,
		 created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`

	var createdAt, updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		models.CanonicalCode(d.Code),
		d.Description,
		string(d.DiscountType),
		d.DiscountValue,
		nullDecimal(d.MaximumDiscount),
		nullDecimal(d.MinimumOrderAmount),
		nullInt(d.UsageLimit),
		nullInt(d.UsageLimitPerUser),
		d.IsActive,
		d.StartDate,
		d.EndDate,
		d.AutoApply,
		d.ShowBadge,
		pq.Array(nonNil(d.ApplicableProducts)),
		pq.Array(nonNil(d.ApplicableVariants)),
		pq.Array(nonNil(d.ApplicableCategories)),
		d.CreatedBy,
	).Scan(&d.ID, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A discount with this code already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return dbError(err, "create discount")
	}

	d.Code = models.CanonicalCode(d.Code)
	d.UsageCount = 0
	d.CreatedAt, d.UpdatedAt = &createdAt, &updatedAt
	return nil
}

// Toggle flips is_active and returns the updated row, or nil, nil when the
// id is unknown.
func (r *DiscountRepo) Toggle(ctx context.Context, id string) (*models.DiscountCode, error) {
	query := `
		UPDATE discount_codes
		SET is_active = NOT is_active, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + discountColumns
	return r.getOne(ctx, r.db, query, id)
}

// List returns one page of discounts matching f, newest first, and the
// number of matches across all pages.
func (r *DiscountRepo) List(ctx context.Context, f models.DiscountFilter) ([]models.DiscountCode, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(code ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM discount_codes`+where, args...).Scan(&total); err != nil {
		return nil, 0, dbError(err, "count discounts")
	}

	query := `SELECT ` + discountColumns + ` FROM discount_codes` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, f.PerPage, f.Offset())...)
	if err != nil {
		return nil, 0, dbError(err, "list discounts")
	}
	defer rows.Close()

	list := []models.DiscountCode{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, 0, dbError(err, "scan discount")
		}
		list = append(list, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbError(err, "iterate discounts")
	}
	return list, total, nil
}

// Update writes every editable column of d and returns the stored row, or
// nil, nil when the id is unknown. Usage counters are never touched here.
func (r *DiscountRepo) Update(ctx context.Context, d *models.DiscountCode) (*models.DiscountCode, error) {
	query := `
		UPDATE discount_codes SET
			code = $2, description = $3, discount_type = $4, discount_value = $5,
			maximum_discount = $6, minimum_order_amount = $7, usage_limit = $8,
			usage_limit_per_user = $9, is_active = $10, start_date = $11, end_date = $12,
			auto_apply = $13, show_badge = $14, applicable_products = $15,
			applicable_variants = $16, applicable_categories = $17, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + discountColumns

	updated, err := scanDiscount(r.db.QueryRowContext(ctx, query,
		d.ID,
		models.CanonicalCode(d.Code),
		d.Description,
		string(d.DiscountType),
		d.DiscountValue,
		nullDecimal(d.MaximumDiscount),
		nullDecimal(d.MinimumOrderAmount),
		nullInt(d.UsageLimit),
		nullInt(d.UsageLimitPerUser),
		d.IsActive,
		d.StartDate,
		d.EndDate,
		d.AutoApply,
		d.ShowBadge,
		pq.Array(nonNil(d.ApplicableProducts)),
		pq.Array(nonNil(d.ApplicableVariants)),
		pq.Array(nonNil(d.ApplicableCategories)),
	))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case isUniqueViolation(err):
		return nil, ierr.WithError(err).
			WithHintf("Discount code '%s' already exists", models.CanonicalCode(d.Code)).
			Mark(ierr.ErrAlreadyExists)
	case err != nil:
		return nil, dbError(err, "update discount")
	}
	return updated, nil
}

// Delete removes the discount. It reports false when the id is unknown.
func (r *DiscountRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discount_codes WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return false, ierr.WithError(err).
				WithHint("This discount has been used on orders, deactivate it instead").
				Mark(ierr.ErrRejected)
		}
		return false, dbError(err, "delete discount")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err, "delete discount")
	}
	return n > 0, nil
}

// IncrementUsage bumps the global usage counter inside tx.
func (r *DiscountRepo) IncrementUsage(ctx context.Context, tx *sql.Tx, id string) error {
	query := `UPDATE discount_codes SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return dbError(err, "increment discount usage")
	}
	return nil
}

func (r *DiscountRepo) getOne(ctx context.Context, q querier, query string, args ...any) (*models.DiscountCode, error) {
	d, err := scanDiscount(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(err, "get discount")
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDiscount(row scanner) (*models.DiscountCode, error) {
	var (
		d                    models.DiscountCode
		discountType         string
		maximumDiscount      decimal.NullDecimal
		minimumOrderAmount   decimal.NullDecimal
		usageLimit           sql.NullInt64
		usageLimitPerUser    sql.NullInt64
		startDate, endDate   sql.NullTime
		createdAt, updatedAt sql.NullTime
		description          sql.NullString
		createdBy            sql.NullString
		products, variants   pq.StringArray
		categories           pq.StringArray
	)

	err := row.Scan(
		&d.ID,
		&d.Code,
		&description,
		&discountType,
		&d.DiscountValue,
		&maximumDiscount,
		&minimumOrderAmount,
		&usageLimit,
		&usageLimitPerUser,
		&d.UsageCount,
		&d.IsActive,
		&startDate,
		&endDate,
		&d.AutoApply,
		&d.ShowBadge,
		&products,
		&variants,
		&categories,
		&createdAt,
		&updatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	d.DiscountType = models.DiscountType(discountType)
	d.Description = stringPtr(description)
	d.CreatedBy = stringPtr(createdBy)
	d.MaximumDiscount = decimalPtr(maximumDiscount)
	d.MinimumOrderAmount = decimalPtr(minimumOrderAmount)
	d.UsageLimit = intPtr(usageLimit)
	d.UsageLimitPerUser = intPtr(usageLimitPerUser)
	d.StartDate = timePtr(startDate)
	d.EndDate = timePtr(endDate)
	d.CreatedAt = timePtr(createdAt)
	d.UpdatedAt = timePtr(updatedAt)
	d.ApplicableProducts = []string(products)
	d.ApplicableVariants = []string(variants)
	d.ApplicableCategories = []string(categories)
	return &d, nil
}

func dbError(err error, op string) error {
	return ierr.WithError(err).
		WithMessage(op).
		Mark(ierr.ErrDatabase)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	return &v.Decimal
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure, after which the transaction may be retried.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
