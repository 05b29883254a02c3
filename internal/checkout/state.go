// Package checkout owns the discount selection of each checkout session:
// silent auto-apply, manual code validation and the applied-code snapshot.
package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
)

type State string

const (
	StateNone        State = "NONE"
	StateAutoApplied State = "AUTO_APPLIED"
	StateValidating  State = "VALIDATING"
	StateApplied     State = "APPLIED"
	StateRejected    State = "REJECTED"
)

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is the single message produced by an apply or remove action.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

func success(format string, args ...any) *Notification {
	return &Notification{Kind: NotificationSuccess, Message: fmt.Sprintf(format, args...)}
}

func failure(msg string) *Notification {
	return &Notification{Kind: NotificationError, Message: msg}
}

// Quote is the priced view of a session.
type Quote struct {
	SessionID    string                  `json:"session_id"`
	State        State                   `json:"state"`
	Items        []models.LineItem       `json:"items"`
	Subtotal     decimal.Decimal         `json:"subtotal"`
	Discount     decimal.Decimal         `json:"discount"`
	Total        decimal.Decimal         `json:"total"`
	Code         *string                 `json:"code,omitempty"`
	DiscountID   *string                 `json:"discount_id,omitempty"`
	AutoDiscount *models.DiscountCode    `json:"auto_discount,omitempty"`
	Needed       *pricing.DiscountNeeded `json:"discount_needed_info,omitempty"`
}

// Result is returned by every session mutation. Notification is always set
// for apply and remove, and set for a cart change only when it dropped the
// applied code.
type Result struct {
	Quote        *Quote        `json:"quote"`
	Notification *Notification `json:"notification,omitempty"`
}
