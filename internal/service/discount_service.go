package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/repository"
)

// AmountTolerance is how far a submitted discount amount may drift from the
// recomputed one before the order is rejected.
var AmountTolerance = decimal.RequireFromString("0.01")

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Repos required by the service, as interfaces so tests can swap them.
type DiscountRepo interface {
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	GetByID(ctx context.Context, id string) (*models.DiscountCode, error)
	LockByID(ctx context.Context, tx *sql.Tx, id string) (*models.DiscountCode, error)
	ListAutoApply(ctx context.Context, now time.Time) ([]models.DiscountCode, error)
	Create(ctx context.Context, d *models.DiscountCode) error
	Toggle(ctx context.Context, id string) (*models.DiscountCode, error)
	List(ctx context.Context, f models.DiscountFilter) ([]models.DiscountCode, int, error)
	Update(ctx context.Context, d *models.DiscountCode) (*models.DiscountCode, error)
	Delete(ctx context.Context, id string) (bool, error)
	IncrementUsage(ctx context.Context, tx *sql.Tx, id string) error
}

type UsageRepo interface {
	CountForUser(ctx context.Context, discountID, userID string) (int, error)
	GetAndLockUsage(ctx context.Context, tx *sql.Tx, discountID, userID string) (int, error)
	IncrementUsage(ctx context.Context, tx *sql.Tx, discountID, userID string) error
}

type OrderRepo interface {
	Create(ctx context.Context, tx *sql.Tx, o *models.Order, req models.OrderRequest) error
}

// DiscountService is the authoritative discount validator used in local
// mode. It serves the same contract as the remote backend.
type DiscountService struct {
	db        *sql.DB
	discounts DiscountRepo
	usage     UsageRepo
	orders    OrderRepo
	validate  *validator.Validate
	log       *logger.Logger
	now       func() time.Time
	onChange  func()
}

func NewDiscountService(db *sql.DB, discounts DiscountRepo, usage UsageRepo, orders OrderRepo, log *logger.Logger) *DiscountService {
	return &DiscountService{
		db:        db,
		discounts: discounts,
		usage:     usage,
		orders:    orders,
		validate:  validator.New(),
		log:       log,
		now:       time.Now,
		onChange:  func() {},
	}
}

// OnChange registers fn to run after an admin edit, e.g. to drop caches.
func (s *DiscountService) OnChange(fn func()) {
	s.onChange = fn
}

func (s *DiscountService) ListAutoApply(ctx context.Context) ([]models.DiscountCode, error) {
	return s.discounts.ListAutoApply(ctx, s.now().UTC())
}

func (s *DiscountService) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	d, err := s.discounts.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ierr.NewError("discount code not found").
			WithHint(pricing.MsgInvalidCode).
			WithReportableDetails(map[string]any{"code": models.CanonicalCode(code)}).
			Mark(ierr.ErrNotFound)
	}
	return d, nil
}

// Validate runs every gate against the submitted subtotal. A failed gate is
// returned as an error marked ErrNotFound or ErrRejected with the shopper
// message as its hint.
func (s *DiscountService) Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Please enter a discount code").
			Mark(ierr.ErrValidation)
	}

	d, err := s.GetByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	var userUsage *int
	if req.UserID != nil && *req.UserID != "" {
		n, err := s.usage.CountForUser(ctx, d.ID, *req.UserID)
		if err != nil {
			return nil, err
		}
		userUsage = &n
	}
	if err := pricing.CheckEligibility(d, s.now(), userUsage); err != nil {
		return nil, err
	}

	amount, err := s.price(d, req)
	if err != nil {
		return nil, err
	}

	discountType := d.DiscountType
	discountValue := d.DiscountValue
	return &models.ValidationResponse{
		Valid:          true,
		Code:           &d.Code,
		DiscountID:     &d.ID,
		DiscountType:   &discountType,
		DiscountValue:  &discountValue,
		DiscountAmount: &amount,
		Message:        "Discount of " + amount.StringFixed(pricing.MoneyPlaces) + " applied!",
	}, nil
}

// price recomputes the discount for a validation request. With line items
// fixed discounts are priced per unit; with only a subtotal they are taken
// once. Lines the server cannot rule out count as applicable.
func (s *DiscountService) price(d *models.DiscountCode, req models.ValidationRequest) (decimal.Decimal, error) {
	if len(req.Items) > 0 {
		items := applicableLines(d, req.Items)
		if len(items) == 0 {
			return decimal.Zero, notApplicable(d)
		}
		if err := pricing.CheckMinimum(d, models.Subtotal(items)); err != nil {
			return decimal.Zero, err
		}
		return pricing.AggregateAmount(d, items), nil
	}

	if len(req.ProductIDs) > 0 && len(d.ApplicableProducts) > 0 &&
		len(d.ApplicableVariants) == 0 && len(d.ApplicableCategories) == 0 &&
		len(lo.Intersect(d.ApplicableProducts, req.ProductIDs)) == 0 {
		return decimal.Zero, notApplicable(d)
	}
	if err := pricing.CheckMinimum(d, req.OrderSubtotal); err != nil {
		return decimal.Zero, err
	}
	return pricing.DiscountAmount(d, req.OrderSubtotal), nil
}

// CreateOrder stores an order. When a discount is attached its amount is
// recomputed from the items and a mismatch is rejected; usage is consumed
// in the same serializable transaction.
func (s *DiscountService) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Please check the order details").
			Mark(ierr.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	items := lo.Map(req.Items, func(it models.OrderItemRequest, _ int) models.LineItem {
		return models.LineItem{
			ProductID:     lo.FromPtr(it.ProductID),
			VariantID:     it.VariantID,
			UnitBasePrice: it.UnitPrice,
			Quantity:      it.Quantity,
		}
	})
	subtotal := models.Subtotal(items)

	if req.DiscountCodeID == nil && req.DiscountAmount.IsPositive() {
		return nil, ierr.NewError("discount amount without code").
			WithHint("A discount amount requires a discount code").
			Mark(ierr.ErrRejected)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("begin tx").Mark(ierr.ErrDatabase)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	discount := decimal.Zero
	if req.DiscountCodeID != nil {
		discount, err = s.redeem(ctx, tx, *req.DiscountCodeID, req.UserID, items, req.DiscountAmount)
		if err != nil {
			return nil, err
		}
	}

	total := subtotal.Add(req.ShippingCost).Add(req.TaxAmount).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	now := s.now().UTC()
	order := &models.Order{
		OrderNumber:    repository.NewOrderNumber(now),
		UserID:         req.UserID,
		Status:         repository.OrderStatusPending,
		Subtotal:       subtotal,
		ShippingCost:   req.ShippingCost,
		TaxAmount:      req.TaxAmount,
		DiscountAmount: discount,
		DiscountCodeID: req.DiscountCodeID,
		Total:          total,
	}
	if err := s.orders.Create(ctx, tx, order, req); err != nil {
		return nil, txError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, txError(ierr.WithError(err).WithMessage("tx commit").Mark(ierr.ErrDatabase))
	}
	committed = true

	s.log.Infow("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"discount_code_id", lo.FromPtr(order.DiscountCodeID),
		"discount_amount", discount.String(),
		"total", total.String(),
	)
	return order, nil
}

// redeem locks the discount and the user's usage row, re-checks every gate
// and consumes one use. It returns the recomputed amount.
func (s *DiscountService) redeem(ctx context.Context, tx *sql.Tx, discountID string, userID *string, items []models.LineItem, submitted decimal.Decimal) (decimal.Decimal, error) {
	d, err := s.discounts.LockByID(ctx, tx, discountID)
	if err != nil {
		return decimal.Zero, txError(err)
	}
	if d == nil {
		return decimal.Zero, ierr.NewError("discount not found").
			WithHint(pricing.MsgInvalidCode).
			Mark(ierr.ErrRejected)
	}

	var userUsage *int
	if userID != nil && *userID != "" {
		n, err := s.usage.GetAndLockUsage(ctx, tx, d.ID, *userID)
		if err != nil {
			return decimal.Zero, txError(err)
		}
		userUsage = &n
	}
	if err := pricing.CheckEligibility(d, s.now(), userUsage); err != nil {
		return decimal.Zero, err
	}

	applicable := applicableLines(d, items)
	if len(applicable) == 0 {
		return decimal.Zero, notApplicable(d)
	}
	if err := pricing.CheckMinimum(d, models.Subtotal(applicable)); err != nil {
		return decimal.Zero, err
	}

	amount := pricing.AggregateAmount(d, applicable)
	if amount.Sub(submitted).Abs().GreaterThan(AmountTolerance) {
		s.log.Warnw("discount amount mismatch",
			"discount_id", d.ID,
			"submitted", submitted.String(),
			"recomputed", amount.String(),
		)
		return decimal.Zero, ierr.NewError("discount amount mismatch").
			WithHint("The discount amount has changed, please review your order").
			WithReportableDetails(map[string]any{
				"submitted":  submitted.String(),
				"recomputed": amount.String(),
			}).
			Mark(ierr.ErrRejected)
	}

	if userUsage != nil {
		if err := s.usage.IncrementUsage(ctx, tx, d.ID, *userID); err != nil {
			return decimal.Zero, txError(err)
		}
	}
	if err := s.discounts.IncrementUsage(ctx, tx, d.ID); err != nil {
		return decimal.Zero, txError(err)
	}
	return amount, nil
}

// CreateDiscount validates and stores a new discount.
func (s *DiscountService) CreateDiscount(ctx context.Context, req models.CreateDiscountRequest) (*models.DiscountCode, error) {
	req.Code = models.CanonicalCode(req.Code)
	if err := s.validate.Struct(req); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Please check the discount details").
			Mark(ierr.ErrValidation)
	}
	d := &models.DiscountCode{
		Code:                 req.Code,
		Description:          req.Description,
		DiscountType:         req.DiscountType,
		DiscountValue:        req.DiscountValue,
		MaximumDiscount:      req.MaximumDiscount,
		MinimumOrderAmount:   req.MinimumOrderAmount,
		UsageLimit:           req.UsageLimit,
		UsageLimitPerUser:    req.UsageLimitPerUser,
		IsActive:             lo.FromPtrOr(req.IsActive, true),
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		AutoApply:            req.AutoApply,
		ShowBadge:            lo.FromPtrOr(req.ShowBadge, true),
		ApplicableProducts:   lo.Uniq(req.ApplicableProducts),
		ApplicableVariants:   lo.Uniq(req.ApplicableVariants),
		ApplicableCategories: lo.Uniq(req.ApplicableCategories),
		CreatedBy:            req.CreatedBy,
	}
	if err := checkDiscountValues(d); err != nil {
		return nil, err
	}
	if err := s.discounts.Create(ctx, d); err != nil {
		return nil, err
	}

	s.onChange()
	s.log.Infow("discount created", "discount_id", d.ID, "code", d.Code, "auto_apply", d.AutoApply)
	return d, nil
}

// GetDiscount returns a discount by id.
func (s *DiscountService) GetDiscount(ctx context.Context, id string) (*models.DiscountCode, error) {
	d, err := s.discounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, discountNotFound(id)
	}
	return d, nil
}

// ToggleDiscount flips the active flag.
func (s *DiscountService) ToggleDiscount(ctx context.Context, id string) (*models.DiscountCode, error) {
	d, err := s.discounts.Toggle(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, discountNotFound(id)
	}

	s.onChange()
	s.log.Infow("discount toggled", "discount_id", d.ID, "is_active", d.IsActive)
	return d, nil
}

// ListDiscounts returns one page of the admin listing. Page defaults to 1
// and PerPage to 20.
func (s *DiscountService) ListDiscounts(ctx context.Context, f models.DiscountFilter) (*models.DiscountList, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PerPage == 0 {
		f.PerPage = defaultPerPage
	}
	if f.Page < 1 || f.PerPage < 1 || f.PerPage > maxPerPage {
		return nil, ierr.NewError("invalid discount page").
			WithHintf("page must be at least 1 and per_page between 1 and %d", maxPerPage).
			Mark(ierr.ErrValidation)
	}
	f.Search = strings.TrimSpace(f.Search)

	items, total, err := s.discounts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	pages := 1
	if total > 0 {
		pages = (total + f.PerPage - 1) / f.PerPage
	}
	return &models.DiscountList{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PerPage:    f.PerPage,
		TotalPages: pages,
	}, nil
}

// UpdateDiscount applies the non-nil fields of req to the stored discount.
func (s *DiscountService) UpdateDiscount(ctx context.Context, id string, req models.UpdateDiscountRequest) (*models.DiscountCode, error) {
	if req.Code != nil {
		req.Code = lo.ToPtr(models.CanonicalCode(*req.Code))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Please check the discount details").
			Mark(ierr.ErrValidation)
	}

	d, err := s.GetDiscount(ctx, id)
	if err != nil {
		return nil, err
	}
	mergeDiscount(d, req)
	if err := checkDiscountValues(d); err != nil {
		return nil, err
	}

	updated, err := s.discounts.Update(ctx, d)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, discountNotFound(id)
	}

	s.onChange()
	s.log.Infow("discount updated", "discount_id", updated.ID, "code", updated.Code, "is_active", updated.IsActive)
	return updated, nil
}

// DeleteDiscount removes a discount. Discounts already used on orders are
// refused by the store and should be deactivated instead.
func (s *DiscountService) DeleteDiscount(ctx context.Context, id string) error {
	ok, err := s.discounts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return discountNotFound(id)
	}

	s.onChange()
	s.log.Infow("discount deleted", "discount_id", id)
	return nil
}

func mergeDiscount(d *models.DiscountCode, req models.UpdateDiscountRequest) {
	if req.Code != nil {
		d.Code = *req.Code
	}
	if req.Description != nil {
		d.Description = req.Description
	}
	if req.DiscountType != nil {
		d.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		d.DiscountValue = *req.DiscountValue
	}
	if req.MinimumOrderAmount != nil {
		d.MinimumOrderAmount = req.MinimumOrderAmount
	}
	if req.MaximumDiscount != nil {
		d.MaximumDiscount = req.MaximumDiscount
	}
	if req.UsageLimit != nil {
		d.UsageLimit = req.UsageLimit
	}
	if req.UsageLimitPerUser != nil {
		d.UsageLimitPerUser = req.UsageLimitPerUser
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if req.StartDate != nil {
		d.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		d.EndDate = req.EndDate
	}
	if req.AutoApply != nil {
		d.AutoApply = *req.AutoApply
	}
	if req.ShowBadge != nil {
		d.ShowBadge = *req.ShowBadge
	}
	if req.ApplicableProducts != nil {
		d.ApplicableProducts = lo.Uniq(req.ApplicableProducts)
	}
	if req.ApplicableVariants != nil {
		d.ApplicableVariants = lo.Uniq(req.ApplicableVariants)
	}
	if req.ApplicableCategories != nil {
		d.ApplicableCategories = lo.Uniq(req.ApplicableCategories)
	}
}

func discountNotFound(id string) error {
	return ierr.NewError("discount not found").
		WithHint("Discount code not found").
		WithReportableDetails(map[string]any{"discount_id": id}).
		Mark(ierr.ErrNotFound)
}

func checkDiscountValues(req *models.DiscountCode) error {
	invalid := func(hint string) error {
		return ierr.NewError("invalid discount values").WithHint(hint).Mark(ierr.ErrValidation)
	}

	if !req.DiscountValue.IsPositive() {
		return invalid("Discount value must be greater than 0")
	}
	if req.DiscountType == models.DiscountTypePercentage && req.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("Percentage discount cannot exceed 100%")
	}
	if req.MinimumOrderAmount != nil && req.MinimumOrderAmount.IsNegative() {
		return invalid("Minimum order amount cannot be negative")
	}
	if req.MaximumDiscount != nil && !req.MaximumDiscount.IsPositive() {
		return invalid("Maximum discount must be greater than 0")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return invalid("End date must be after start date")
	}
	return nil
}

// applicableLines keeps the lines d applies to or may apply to. Category
// restrictions on lines without a category cannot be checked here either.
func applicableLines(d *models.DiscountCode, items []models.LineItem) []models.LineItem {
	return lo.Filter(items, func(it models.LineItem, _ int) bool {
		return pricing.Resolve(d, it) != pricing.DoesNotApply
	})
}

func notApplicable(d *models.DiscountCode) error {
	return ierr.NewError("discount matches no order line").
		WithHint(pricing.MsgNotApplicable).
		WithReportableDetails(map[string]any{"code": d.Code}).
		Mark(ierr.ErrRejected)
}

// txError turns serialization failures into retryable errors.
func txError(err error) error {
	if repository.IsSerializationFailure(err) {
		return ierr.WithError(err).
			WithHint("The order could not be placed right now, please try again").
			Mark(ierr.ErrTransient)
	}
	return err
}
