package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goCache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
)

const (
	MsgApplied      = "Discount of %s applied!"
	MsgRemoved      = "Discount code removed"
	MsgNothingToRem = "No discount code is applied"
	MsgUnavailable  = "Could not check the discount code right now, please try again"
	MsgSuperseded   = "This discount request was replaced by a newer one"
	MsgCannotApply  = "This discount code cannot be applied"
)

type session struct {
	mu sync.Mutex

	id     string
	userID *string
	items  []models.LineItem
	state  State

	// auto is the last auto-apply selection, kept in NONE for the
	// spend-more info.
	auto    *pricing.Selection
	applied *Applied

	// token is bumped by every action that supersedes in-flight
	// validation. A completion holding an older token is discarded.
	token uint64
	prev  *prior

	candidates []models.DiscountCode
}

// prior is what a session returns to when a validation ends without a
// decision.
type prior struct {
	state   State
	applied *Applied
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransitionHook registers fn to observe every state change. fn runs
// with the session locked and must not call back into the Manager.
func WithTransitionHook(fn func(sessionID string, from, to State)) Option {
	return func(m *Manager) { m.onTransition = fn }
}

// WithClock overrides time.Now for date window checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.validator.now = now
	}
}

// Manager owns every live checkout session. Sessions expire after the
// configured TTL of inactivity; the applied snapshot outlives them in the
// AppliedStore.
type Manager struct {
	catalog      Catalog
	authority    Authority
	validator    *Validator
	store        AppliedStore
	sessions     *goCache.Cache
	ttl          time.Duration
	log          *logger.Logger
	now          func() time.Time
	onTransition func(sessionID string, from, to State)
}

func NewManager(catalog Catalog, authority Authority, store AppliedStore, sessionTTL time.Duration, log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		catalog:   catalog,
		authority: authority,
		validator: NewValidator(catalog, authority),
		store:     store,
		sessions:  goCache.New(sessionTTL, sessionTTL),
		ttl:       sessionTTL,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type CreateParams struct {
	SessionID string            `json:"session_id,omitempty"`
	UserID    *string           `json:"user_id,omitempty"`
	Items     []models.LineItem `json:"items" validate:"dive"`
}

// Create opens a session. Passing the id of an expired session re-opens it
// and restores its applied code, which is then re-validated.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Result, error) {
	id := p.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	s := &session{
		id:     id,
		userID: p.UserID,
		items:  cloneItems(p.Items),
		state:  StateNone,
	}
	s.candidates = m.fetchCandidates(ctx)

	if err := m.sessions.Add(id, s, m.ttl); err != nil {
		return nil, ierr.NewError("checkout session exists").
			WithHint("A checkout session with this id is already open").
			WithReportableDetails(map[string]any{"session_id": id}).
			Mark(ierr.ErrAlreadyExists)
	}

	applied, err := m.store.Load(ctx, id)
	if err != nil {
		m.log.Warnw("failed to load applied discount", "session_id", id, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if applied != nil {
		s.applied = applied
		m.transition(s, StateApplied)
	}
	note := m.settle(ctx, s)

	m.log.Infow("checkout session opened", "session_id", id, "state", s.state)
	return &Result{Quote: m.quote(s), Notification: note}, nil
}

// Quote returns the current pricing of a session.
func (m *Manager) Quote(ctx context.Context, id string) (*Quote, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.quote(s), nil
}

// UpdateItems replaces the cart. An in-flight code validation is
// superseded; an applied code is re-validated against the new cart.
func (m *Manager) UpdateItems(ctx context.Context, id string, items []models.LineItem) (*Result, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	candidates := m.fetchCandidates(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if candidates != nil {
		s.candidates = candidates
	}
	s.items = cloneItems(items)

	if s.state == StateValidating {
		s.token++
		m.restore(s)
	}
	note := m.settle(ctx, s)
	m.touch(s)

	return &Result{Quote: m.quote(s), Notification: note}, nil
}

// ApplyCode validates a manually entered code. Auto-apply is suspended
// while the code is checked. A transient failure leaves the session as it
// was before the call.
func (m *Manager) ApplyCode(ctx context.Context, id, code string) (*Result, error) {
	if models.CanonicalCode(code) == "" {
		return nil, ierr.NewError("empty discount code").
			WithHint("Please enter a discount code").
			Mark(ierr.ErrValidation)
	}
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token++
	token := s.token
	if s.state != StateValidating {
		s.prev = &prior{state: s.state, applied: s.applied}
	}
	m.transition(s, StateValidating)
	userID, items := s.userID, cloneItems(s.items)
	m.touch(s)

	s.mu.Unlock()
	applied, verr := m.validator.Validate(ctx, code, userID, items)
	s.mu.Lock()

	if token != s.token {
		m.log.Debugw("discarding stale validation", "session_id", s.id, "code", code)
		return &Result{Quote: m.quote(s), Notification: failure(MsgSuperseded)}, nil
	}

	switch {
	case verr == nil:
		s.prev = nil
		s.applied = applied
		m.transition(s, StateApplied)
		m.saveApplied(ctx, s)
		m.log.Infow("discount code applied",
			"session_id", s.id,
			"code", applied.Code,
			"amount", applied.Amount.String(),
		)
		return &Result{
			Quote:        m.quote(s),
			Notification: success(MsgApplied, applied.Amount.StringFixed(pricing.MoneyPlaces)),
		}, nil

	case decisive(verr):
		m.log.Infow("discount code rejected", "session_id", s.id, "code", code, "reason", ierr.Reason(verr))
		m.reject(ctx, s)
		return &Result{Quote: m.quote(s), Notification: failure(reasonFor(verr))}, nil

	default:
		m.log.Warnw("discount validation unavailable", "session_id", s.id, "code", code, "error", verr)
		m.restore(s)
		m.settleLocal(s)
		return &Result{Quote: m.quote(s), Notification: failure(MsgUnavailable)}, nil
	}
}

// RemoveCode drops the manual code and lets auto-apply take over.
func (m *Manager) RemoveCode(ctx context.Context, id string) (*Result, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hadCode := s.applied != nil || s.state == StateValidating
	s.token++
	s.prev = nil
	s.applied = nil
	m.deleteApplied(ctx, s)
	m.transition(s, StateNone)
	m.autoApply(s)
	m.touch(s)

	note := failure(MsgNothingToRem)
	if hadCode {
		note = success(MsgRemoved)
	}
	return &Result{Quote: m.quote(s), Notification: note}, nil
}

// SubmitOrder creates the order with the session's discount and closes the
// session. The discount amount sent is advisory; the authority recomputes it.
func (m *Manager) SubmitOrder(ctx context.Context, id string, req models.OrderRequest) (*models.Order, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateValidating {
		return nil, ierr.NewError("order submitted during validation").
			WithHint("A discount code is still being checked").
			Mark(ierr.ErrValidation)
	}
	if len(s.items) == 0 {
		return nil, ierr.NewError("empty cart").
			WithHint("Your cart is empty").
			Mark(ierr.ErrValidation)
	}

	q := m.quote(s)
	if req.UserID == nil {
		req.UserID = s.userID
	}
	req.Items = lo.Map(s.items, func(it models.LineItem, _ int) models.OrderItemRequest {
		productID := it.ProductID
		name := it.Name
		if name == "" {
			name = it.ProductID
		}
		return models.OrderItemRequest{
			ProductID:   &productID,
			VariantID:   it.VariantID,
			ProductName: name,
			ProductSKU:  it.SKU,
			UnitPrice:   it.EffectiveUnitPrice(),
			Quantity:    it.Quantity,
		}
	})
	req.DiscountAmount = q.Discount
	req.DiscountCodeID = q.DiscountID

	order, err := m.authority.CreateOrder(ctx, req)
	if err != nil {
		m.log.Warnw("order submission failed", "session_id", s.id, "error", err)
		return nil, err
	}

	m.deleteApplied(ctx, s)
	m.sessions.Delete(s.id)
	m.log.Infow("order submitted",
		"session_id", s.id,
		"order_id", order.ID,
		"discount_amount", req.DiscountAmount.String(),
	)
	return order, nil
}

// settle re-evaluates s after its cart changed. It is entered and left with
// s.mu held, but releases it while an applied code is re-validated.
func (m *Manager) settle(ctx context.Context, s *session) *Notification {
	if s.state != StateApplied || s.applied == nil {
		m.settleLocal(s)
		return nil
	}

	s.token++
	token := s.token
	code, userID, items := s.applied.Code, s.userID, cloneItems(s.items)

	s.mu.Unlock()
	applied, err := m.validator.Validate(ctx, code, userID, items)
	s.mu.Lock()

	if token != s.token {
		return nil
	}

	switch {
	case err == nil:
		s.applied = applied
		m.saveApplied(ctx, s)
		return nil
	case decisive(err):
		m.log.Infow("applied code no longer valid", "session_id", s.id, "code", code, "reason", ierr.Reason(err))
		m.reject(ctx, s)
		return failure(reasonFor(err))
	default:
		// a flaky re-check never strips an applied code
		m.log.Warnw("re-validation unavailable, keeping applied code", "session_id", s.id, "code", code, "error", err)
		return nil
	}
}

// settleLocal re-runs auto-apply unless a manual code owns the session.
func (m *Manager) settleLocal(s *session) {
	if s.state == StateApplied || s.state == StateValidating {
		return
	}
	m.autoApply(s)
}

func (m *Manager) autoApply(s *session) {
	now := m.now()
	live := lo.Filter(s.candidates, func(d models.DiscountCode, _ int) bool {
		return d.AutoApply && pricing.InWindow(&d, now)
	})

	s.auto = pricing.SelectBest(live, s.items)
	if s.auto != nil && s.auto.Amount.IsPositive() {
		m.transition(s, StateAutoApplied)
		return
	}
	m.transition(s, StateNone)
}

// reject moves s through REJECTED back to NONE and resumes auto-apply.
func (m *Manager) reject(ctx context.Context, s *session) {
	m.transition(s, StateRejected)
	s.prev = nil
	s.applied = nil
	m.deleteApplied(ctx, s)
	m.transition(s, StateNone)
	m.autoApply(s)
}

func (m *Manager) restore(s *session) {
	if s.prev == nil {
		m.transition(s, StateNone)
		return
	}
	s.applied = s.prev.applied
	m.transition(s, s.prev.state)
	s.prev = nil
}

func (m *Manager) transition(s *session, to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	m.log.Debugw("checkout state change", "session_id", s.id, "from", from, "to", to)
	if m.onTransition != nil {
		m.onTransition(s.id, from, to)
	}
}

func (m *Manager) quote(s *session) *Quote {
	q := &Quote{
		SessionID: s.id,
		State:     s.state,
		Items:     cloneItems(s.items),
	}

	discount := decimal.Zero
	switch s.state {
	case StateApplied:
		discount = s.applied.Amount
		code, id := s.applied.Code, s.applied.DiscountID
		q.Code, q.DiscountID = &code, &id
	case StateAutoApplied:
		discount = s.auto.Amount
		d := *s.auto.Discount
		q.AutoDiscount = &d
		q.DiscountID = &d.ID
	case StateNone:
		if s.auto.BelowMinimum() {
			needed := *s.auto.Needed
			q.Needed = &needed
		}
	}

	totals := pricing.CartTotals(s.items, discount)
	q.Subtotal, q.Discount, q.Total = totals.Subtotal, totals.Discount, totals.Total
	return q
}

func (m *Manager) session(id string) (*session, error) {
	val, ok := m.sessions.Get(id)
	if !ok {
		return nil, ierr.NewError("checkout session not found").
			WithHint("Checkout session not found or expired").
			WithReportableDetails(map[string]any{"session_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return val.(*session), nil
}

func (m *Manager) touch(s *session) {
	m.sessions.Set(s.id, s, m.ttl)
}

// fetchCandidates returns nil when the catalog is unavailable so callers
// keep the last good list.
func (m *Manager) fetchCandidates(ctx context.Context) []models.DiscountCode {
	list, err := m.catalog.ListAutoApply(ctx)
	if err != nil {
		m.log.Warnw("auto-apply discounts unavailable", "error", err)
		return nil
	}
	if list == nil {
		list = []models.DiscountCode{}
	}
	return list
}

func (m *Manager) saveApplied(ctx context.Context, s *session) {
	if err := m.store.Save(ctx, s.id, s.applied); err != nil {
		m.log.Warnw("failed to persist applied discount", "session_id", s.id, "error", err)
	}
}

func (m *Manager) deleteApplied(ctx context.Context, s *session) {
	if err := m.store.Delete(ctx, s.id); err != nil {
		m.log.Warnw("failed to clear applied discount", "session_id", s.id, "error", err)
	}
}

// decisive reports whether err settles the code as unusable, as opposed to
// a failure that says nothing about the code.
func decisive(err error) bool {
	return ierr.IsNotFound(err) || ierr.IsRejected(err)
}

func reasonFor(err error) string {
	if reason := ierr.Reason(err); reason != "" {
		return reason
	}
	if ierr.IsNotFound(err) {
		return pricing.MsgInvalidCode
	}
	return MsgCannotApply
}

func cloneItems(items []models.LineItem) []models.LineItem {
	if items == nil {
		return []models.LineItem{}
	}
	return append([]models.LineItem(nil), items...)
}
