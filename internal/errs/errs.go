package errs

import (
	cr "github.com/cockroachdb/errors"
)

// Sentinel errors for the inventory and order-queue core. Callers branch on
// these with errors.Is; messages are stable.
var (
	ErrNotFound          = cr.New("not found")
	ErrInsufficientStock = cr.New("insufficient stock")
	ErrEmptyCart         = cr.New("cart is empty")
	ErrEmptyQueue        = cr.New("order queue is empty")
	ErrNoPendingOrders   = cr.New("no pending orders in queue")
	ErrMissingDiscount   = cr.New("discount required for new storefront product")
	ErrValidation        = cr.New("validation failed")
	ErrPersistence       = cr.New("persistence failure")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

// Mark attaches a sentinel to err so errors.Is(result, markErr) holds while
// the original cause is preserved.
func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}
