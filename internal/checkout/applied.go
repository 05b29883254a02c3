package checkout

import (
	"context"
	"encoding/json"
	"time"

	goCache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// Applied is a manually applied, server validated code. It is the only
// piece of session state that is persisted.
type Applied struct {
	DiscountID         string              `json:"discount_id"`
	Code               string              `json:"code"`
	Discount           models.DiscountCode `json:"discount"`
	Amount             decimal.Decimal     `json:"amount"`
	ApplicableSubtotal decimal.Decimal     `json:"applicable_subtotal"`
	AppliedAt          time.Time           `json:"applied_at"`
}

func (a *Applied) Marshal() ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("marshal applied discount").
			Mark(ierr.ErrSystem)
	}
	return raw, nil
}

func UnmarshalApplied(raw []byte) (*Applied, error) {
	var a Applied
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, ierr.WithError(err).
			WithMessage("unmarshal applied discount").
			Mark(ierr.ErrSystem)
	}
	if a.Code == "" {
		return nil, ierr.NewError("applied discount without code").
			Mark(ierr.ErrSystem)
	}
	return &a, nil
}

// AppliedStore persists the applied code per session. Writes are last
// write wins. Load returns nil, nil when nothing is stored.
type AppliedStore interface {
	Save(ctx context.Context, sessionID string, a *Applied) error
	Load(ctx context.Context, sessionID string) (*Applied, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps serialized snapshots in process.
type MemoryStore struct {
	store *goCache.Cache
	ttl   time.Duration
}

func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{store: goCache.New(ttl, cleanupInterval), ttl: ttl}
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, a *Applied) error {
	raw, err := a.Marshal()
	if err != nil {
		return err
	}
	m.store.Set(sessionID, raw, m.ttl)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Applied, error) {
	val, ok := m.store.Get(sessionID)
	if !ok {
		return nil, nil
	}
	return UnmarshalApplied(val.([]byte))
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.store.Delete(sessionID)
	return nil
}
