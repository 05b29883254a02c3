package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
)

type fakeCatalog struct {
	mu        sync.Mutex
	autoApply []models.DiscountCode
	codes     map[string]models.DiscountCode
	listErr   error
}

func (f *fakeCatalog) ListAutoApply(ctx context.Context) ([]models.DiscountCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.DiscountCode(nil), f.autoApply...), nil
}

func (f *fakeCatalog) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.codes[models.CanonicalCode(code)]
	if !ok {
		return nil, ierr.NewError("not found").WithHint(pricing.MsgInvalidCode).Mark(ierr.ErrNotFound)
	}
	return &d, nil
}

type fakeAuthority struct {
	mu        sync.Mutex
	failWith  map[string]error
	blockOn   map[string]chan struct{}
	entered   chan string
	requests  []models.ValidationRequest
	orders    []models.OrderRequest
	orderErr  error
	validated int
}

func (f *fakeAuthority) Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error) {
	f.mu.Lock()
	f.validated++
	f.requests = append(f.requests, req)
	err := f.failWith[req.Code]
	gate := f.blockOn[req.Code]
	f.mu.Unlock()

	if gate != nil {
		if f.entered != nil {
			f.entered <- req.Code
		}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	code := req.Code
	return &models.ValidationResponse{Valid: true, Code: &code, Message: "ok"}, nil
}

func (f *fakeAuthority) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, req)
	return &models.Order{ID: "order-1", DiscountAmount: req.DiscountAmount, DiscountCodeID: req.DiscountCodeID}, nil
}

func (f *fakeAuthority) fail(code string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith[code] = err
}

type ManagerSuite struct {
	suite.Suite
	ctx         context.Context
	catalog     *fakeCatalog
	authority   *fakeAuthority
	store       *MemoryStore
	manager     *Manager
	transitions []State
}

func TestManager(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.transitions = nil

	minimum := decimal.NewFromInt(1000)
	s.catalog = &fakeCatalog{
		autoApply: []models.DiscountCode{
			discount("a1", "AUTO10", models.DiscountTypePercentage, 10, true),
		},
		codes: map[string]models.DiscountCode{
			"SAVE20": discount("m1", "SAVE20", models.DiscountTypePercentage, 20, false),
			"FAST":   discount("m2", "FAST", models.DiscountTypeFixedAmount, 5, false),
			"SLOW":   discount("m3", "SLOW", models.DiscountTypeFixedAmount, 1, false),
			"SHOES":  withProducts(discount("m4", "SHOES", models.DiscountTypePercentage, 50, false), "shoe"),
			"BIG": func() models.DiscountCode {
				d := discount("m5", "BIG", models.DiscountTypePercentage, 30, false)
				d.MinimumOrderAmount = &minimum
				return d
			}(),
		},
	}
	s.authority = &fakeAuthority{
		failWith: map[string]error{},
		blockOn:  map[string]chan struct{}{},
	}
	s.store = NewMemoryStore(time.Hour, time.Hour)
	s.manager = s.newManager()
}

func (s *ManagerSuite) newManager() *Manager {
	return NewManager(s.catalog, s.authority, s.store, time.Hour, logger.NewNop(),
		WithTransitionHook(func(_ string, _, to State) {
			s.transitions = append(s.transitions, to)
		}),
	)
}

func discount(id, code string, kind models.DiscountType, value int64, auto bool) models.DiscountCode {
	return models.DiscountCode{
		ID:            id,
		Code:          code,
		DiscountType:  kind,
		DiscountValue: decimal.NewFromInt(value),
		IsActive:      true,
		AutoApply:     auto,
	}
}

func withProducts(d models.DiscountCode, ids ...string) models.DiscountCode {
	d.ApplicableProducts = ids
	return d
}

func shirts(qty int) []models.LineItem {
	return []models.LineItem{{ProductID: "shirt", Name: "Shirt", UnitBasePrice: decimal.NewFromInt(100), Quantity: qty}}
}

func (s *ManagerSuite) money(expected string, actual decimal.Decimal, msgAndArgs ...any) {
	if len(msgAndArgs) == 0 {
		msgAndArgs = []any{"expected %s, got %s", expected, actual}
	}
	s.True(decimal.RequireFromString(expected).Equal(actual), msgAndArgs...)
}

func (s *ManagerSuite) open(items []models.LineItem) *Quote {
	res, err := s.manager.Create(s.ctx, CreateParams{Items: items})
	s.Require().NoError(err)
	s.Nil(res.Notification)
	s.transitions = nil
	return res.Quote
}

func (s *ManagerSuite) TestCreateAutoApplies() {
	q := s.open(shirts(2))

	s.Equal(StateAutoApplied, q.State)
	s.money("200", q.Subtotal)
	s.money("20", q.Discount)
	s.money("180", q.Total)
	s.Require().NotNil(q.AutoDiscount)
	s.Equal("AUTO10", q.AutoDiscount.Code)
	s.Nil(q.Code)
}

func (s *ManagerSuite) TestCreateBelowMinimumExposesNeeded() {
	minimum := decimal.NewFromInt(500)
	auto := discount("a2", "SPEND500", models.DiscountTypePercentage, 10, true)
	auto.MinimumOrderAmount = &minimum
	s.catalog.autoApply = []models.DiscountCode{auto}

	q := s.open(shirts(2))

	s.Equal(StateNone, q.State)
	s.money("0", q.Discount)
	s.Require().NotNil(q.Needed)
	s.money("300", q.Needed.AmountNeeded)
}

func (s *ManagerSuite) TestApplyCodeSuccess() {
	q := s.open(shirts(2))

	res, err := s.manager.ApplyCode(s.ctx, q.SessionID, " save20 ")
	s.Require().NoError(err)

	s.Equal(StateApplied, res.Quote.State)
	s.money("40", res.Quote.Discount)
	s.Equal("SAVE20", *res.Quote.Code)
	s.Equal("m1", *res.Quote.DiscountID)
	s.Require().NotNil(res.Notification)
	s.Equal(NotificationSuccess, res.Notification.Kind)
	s.Equal("Discount of 40.00 applied!", res.Notification.Message)
	s.Equal([]State{StateValidating, StateApplied}, s.transitions)

	stored, err := s.store.Load(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal("SAVE20", stored.Code)

	s.Require().Len(s.authority.requests, 1)
	s.money("200", s.authority.requests[0].OrderSubtotal)
	s.Equal([]string{"shirt"}, s.authority.requests[0].ProductIDs)
}

func (s *ManagerSuite) TestApplyUnknownCodeRejects() {
	q := s.open(shirts(2))

	res, err := s.manager.ApplyCode(s.ctx, q.SessionID, "NOPE")
	s.Require().NoError(err)

	s.Equal(StateAutoApplied, res.Quote.State, "auto-apply resumes")
	s.Equal(NotificationError, res.Notification.Kind)
	s.Equal(pricing.MsgInvalidCode, res.Notification.Message)
	s.Equal([]State{StateValidating, StateRejected, StateNone, StateAutoApplied}, s.transitions)
	s.Zero(s.authority.validated)
}

func (s *ManagerSuite) TestApplyCodeNotApplicableSkipsAuthority() {
	q := s.open(shirts(1))

	res, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SHOES")
	s.Require().NoError(err)

	s.Equal(pricing.MsgNotApplicable, res.Notification.Message)
	s.Zero(s.authority.validated)
}

func (s *ManagerSuite) TestApplyCodeRejectedByAuthority() {
	s.authority.fail("BIG", ierr.NewError("rejected").
		WithHint("Minimum order amount of 1000.00 required").
		Mark(ierr.ErrRejected))
	q := s.open(shirts(2))

	res, err := s.manager.ApplyCode(s.ctx, q.SessionID, "BIG")
	s.Require().NoError(err)

	s.Equal(StateAutoApplied, res.Quote.State)
	s.Equal("Minimum order amount of 1000.00 required", res.Notification.Message)
	s.Contains(s.transitions, StateRejected)
}

func (s *ManagerSuite) TestApplyCodeTransientRestoresPreviousState() {
	s.authority.fail("SAVE20", ierr.NewError("down").Mark(ierr.ErrTransient))
	q := s.open(shirts(2))

	res, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SAVE20")
	s.Require().NoError(err)

	s.Equal(StateAutoApplied, res.Quote.State)
	s.money("20", res.Quote.Discount)
	s.Nil(res.Quote.Code)
	s.Equal(MsgUnavailable, res.Notification.Message)
	s.NotContains(s.transitions, StateRejected)

	stored, err := s.store.Load(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Nil(stored)
}

func (s *ManagerSuite) TestTransientKeepsEarlierAppliedCode() {
	q := s.open(shirts(2))
	_, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SAVE20")
	s.Require().NoError(err)

	s.authority.fail("FAST", ierr.NewError("down").Mark(ierr.ErrTransient))
	res, err := s.manager.ApplyCode(s.ctx, q.SessionID, "FAST")
	s.Require().NoError(err)

	s.Equal(StateApplied, res.Quote.State)
	s.Equal("SAVE20", *res.Quote.Code)
}

func (s *ManagerSuite) TestCartChangeRevalidatesAppliedCode() {
	q := s.open(shirts(2))
	_, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SAVE20")
	s.Require().NoError(err)

	res, err := s.manager.UpdateItems(s.ctx, q.SessionID, shirts(3))
	s.Require().NoError(err)
	s.Equal(StateApplied, res.Quote.State)
	s.money("60", res.Quote.Discount)
	s.Nil(res.Notification)

	s.authority.fail("SAVE20", ierr.NewError("limit").
		WithHint(pricing.MsgUsageLimit).
		Mark(ierr.ErrRejected))
	s.transitions = nil

	res, err = s.manager.UpdateItems(s.ctx, q.SessionID, shirts(1))
	s.Require().NoError(err)
	s.Equal(StateAutoApplied, res.Quote.State)
	s.money("10", res.Quote.Discount)
	s.Require().NotNil(res.Notification)
	s.Equal(pricing.MsgUsageLimit, res.Notification.Message)
	s.Equal([]State{StateRejected, StateNone, StateAutoApplied}, s.transitions)
}

func (s *ManagerSuite) TestCartChangeTransientKeepsAppliedCode() {
	q := s.open(shirts(2))
	_, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SAVE20")
	s.Require().NoError(err)

	s.authority.fail("SAVE20", ierr.NewError("down").Mark(ierr.ErrTransient))
	res, err := s.manager.UpdateItems(s.ctx, q.SessionID, shirts(1))
	s.Require().NoError(err)

	s.Equal(StateApplied, res.Quote.State)
	s.Nil(res.Notification)
	s.money("100", res.Quote.Subtotal)
	s.money("40", res.Quote.Discount, "previous amount kept")
}

func (s *ManagerSuite) TestRemoveCode() {
	q := s.open(shirts(2))
	_, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SAVE20")
	s.Require().NoError(err)

	res, err := s.manager.RemoveCode(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Equal(StateAutoApplied, res.Quote.State)
	s.Equal(NotificationSuccess, res.Notification.Kind)
	s.Equal(MsgRemoved, res.Notification.Message)

	stored, err := s.store.Load(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Nil(stored)

	res, err = s.manager.RemoveCode(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Equal(NotificationError, res.Notification.Kind)
}

func (s *ManagerSuite) TestStaleValidationIsDiscarded() {
	gate := make(chan struct{})
	s.authority.blockOn["SLOW"] = gate
	s.authority.entered = make(chan string, 1)
	q := s.open(shirts(2))

	slow := make(chan *Result, 1)
	go func() {
		res, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SLOW")
		s.NoError(err)
		slow <- res
	}()
	<-s.authority.entered

	mid, err := s.manager.Quote(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Equal(StateValidating, mid.State)
	s.money("0", mid.Discount, "auto-apply suspended while validating")

	fast, err := s.manager.ApplyCode(s.ctx, q.SessionID, "FAST")
	s.Require().NoError(err)
	s.Equal(StateApplied, fast.Quote.State)
	s.Equal("FAST", *fast.Quote.Code)

	close(gate)
	res := <-slow
	s.Equal(MsgSuperseded, res.Notification.Message)
	s.Equal("FAST", *res.Quote.Code)

	final, err := s.manager.Quote(s.ctx, q.SessionID)
	s.Require().NoError(err)
	s.Equal("FAST", *final.Code)
	s.money("10", final.Discount)
}

func (s *ManagerSuite) TestCartChangeSupersedesValidation() {
	gate := make(chan struct{})
	s.authority.blockOn["SLOW"] = gate
	s.authority.entered = make(chan string, 1)
	q := s.open(shirts(2))

	slow := make(chan *Result, 1)
	go func() {
		res, _ := s.manager.ApplyCode(s.ctx, q.SessionID, "SLOW")
		slow <- res
	}()
	<-s.authority.entered

	res, err := s.manager.UpdateItems(s.ctx, q.SessionID, shirts(4))
	s.Require().NoError(err)
	s.Equal(StateAutoApplied, res.Quote.State)
	s.money("40", res.Quote.Discount)

	close(gate)
	s.Equal(MsgSuperseded, (<-slow).Notification.Message)
}

func (s *ManagerSuite) TestReopenRestoresAppliedCode() {
	res, err := s.manager.Create(s.ctx, CreateParams{SessionID: "sess-1", Items: shirts(2)})
	s.Require().NoError(err)
	_, err = s.manager.ApplyCode(s.ctx, res.Quote.SessionID, "SAVE20")
	s.Require().NoError(err)

	// a fresh manager has no live sessions but shares the snapshot store
	s.manager = s.newManager()
	reopened, err := s.manager.Create(s.ctx, CreateParams{SessionID: "sess-1", Items: shirts(2)})
	s.Require().NoError(err)

	s.Equal(StateApplied, reopened.Quote.State)
	s.Equal("SAVE20", *reopened.Quote.Code)
	s.money("40", reopened.Quote.Discount)
}

func (s *ManagerSuite) TestCreateDuplicateSession() {
	_, err := s.manager.Create(s.ctx, CreateParams{SessionID: "dup", Items: shirts(1)})
	s.Require().NoError(err)

	_, err = s.manager.Create(s.ctx, CreateParams{SessionID: "dup", Items: shirts(1)})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *ManagerSuite) TestUnknownSession() {
	_, err := s.manager.Quote(s.ctx, "missing")
	s.True(ierr.IsNotFound(err))

	_, err = s.manager.ApplyCode(s.ctx, "missing", "SAVE20")
	s.True(ierr.IsNotFound(err))
}

func (s *ManagerSuite) TestApplyEmptyCode() {
	q := s.open(shirts(1))
	_, err := s.manager.ApplyCode(s.ctx, q.SessionID, "   ")
	s.True(ierr.IsValidation(err))
	s.Empty(s.transitions)
}

func (s *ManagerSuite) TestSubmitOrder() {
	q := s.open(shirts(2))
	_, err := s.manager.ApplyCode(s.ctx, q.SessionID, "SAVE20")
	s.Require().NoError(err)

	order, err := s.manager.SubmitOrder(s.ctx, q.SessionID, models.OrderRequest{
		CustomerName:    "Juan",
		CustomerEmail:   "juan@example.com",
		ShippingAddress: "1 Main St",
		ShippingCity:    "Manila",
	})
	s.Require().NoError(err)
	s.Equal("order-1", order.ID)

	s.Require().Len(s.authority.orders, 1)
	sent := s.authority.orders[0]
	s.money("40", sent.DiscountAmount)
	s.Equal("m1", *sent.DiscountCodeID)
	s.Require().Len(sent.Items, 1)
	s.Equal("Shirt", sent.Items[0].ProductName)
	s.Equal(2, sent.Items[0].Quantity)

	_, err = s.manager.Quote(s.ctx, q.SessionID)
	s.True(ierr.IsNotFound(err), "session closes after the order")
}

func (s *ManagerSuite) TestSubmitOrderFailureKeepsSession() {
	s.authority.orderErr = ierr.NewError("mismatch").Mark(ierr.ErrRejected)
	q := s.open(shirts(2))

	_, err := s.manager.SubmitOrder(s.ctx, q.SessionID, models.OrderRequest{})
	s.True(ierr.IsRejected(err))

	_, err = s.manager.Quote(s.ctx, q.SessionID)
	s.NoError(err)
}

func (s *ManagerSuite) TestCatalogOutageKeepsLastCandidates() {
	q := s.open(shirts(2))
	s.catalog.listErr = ierr.NewError("down").Mark(ierr.ErrTransient)

	res, err := s.manager.UpdateItems(s.ctx, q.SessionID, shirts(3))
	s.Require().NoError(err)
	s.Equal(StateAutoApplied, res.Quote.State)
	s.money("30", res.Quote.Discount)
}

func (s *ManagerSuite) TestExpiredAutoApplyIsIgnored() {
	past := time.Now().Add(-time.Hour)
	expired := discount("a3", "OLD", models.DiscountTypePercentage, 90, true)
	expired.EndDate = &past
	s.catalog.autoApply = append(s.catalog.autoApply, expired)

	q := s.open(shirts(2))
	s.Equal("AUTO10", q.AutoDiscount.Code)
}
