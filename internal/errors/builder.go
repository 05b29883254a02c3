package errors

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ErrorBuilder assembles a pricing error in three layers: the internal
// message that is only logged, the shopper-facing hint that Reason returns
// and the HTTP layer sends as detail, and the sentinel that picks the status
// code and decides whether checkout treats the failure as a verdict on the
// code. Finish every chain with Mark.
type ErrorBuilder struct {
	err error
}

// NewError starts a chain from an internal message. The message is logged
// and never shown to the shopper.
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

// WithError starts a chain from a driver, transport or validator error.
func WithError(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// WithMessage prefixes the logged error with the failing operation.
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.WithMessage(b.err, msg)
	return b
}

func (b *ErrorBuilder) WithMessagef(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithMessagef(b.err, format, args...)
	return b
}

// WithHint sets the shopper message, such as "This discount code has
// expired". A checkout notification carries it verbatim, so it should read
// as a sentence.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithHintf(b.err, format, args...)
	return b
}

// WithReportableDetails attaches identifiers like the discount code, the
// session id or the backend status. They are returned under "details" in
// error bodies and must not contain customer data.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	marshaled, err := json.Marshal(details)
	if err != nil {
		return b
	}
	b.err = errors.WithSafeDetails(b.err, "__json__:%s", errors.Safe(string(marshaled)))
	return b
}

// Mark tags the error with one of the sentinels in this package and returns
// it. ErrNotFound and ErrRejected settle a code as unusable. Every other
// sentinel leaves the shopper's previous discount in place.
func (b *ErrorBuilder) Mark(reference error) error {
	b.err = errors.Mark(b.err, reference)
	return b.err
}

// Error returns the error unmarked. It maps to a 500.
func (b *ErrorBuilder) Error() error {
	return b.err
}
