// Package apperr defines the stable error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	AuthenticationRequired   Kind = "AuthenticationRequired"
	Unauthorized             Kind = "Unauthorized"
	NotFound                 Kind = "NotFound"
	ItemUnavailable          Kind = "ItemUnavailable"
	VariantUnavailable       Kind = "VariantUnavailable"
	ChoiceUnavailable        Kind = "ChoiceUnavailable"
	BundleItemUnavailable    Kind = "BundleItemUnavailable"
	InvalidQuantity          Kind = "InvalidQuantity"
	InvalidVoucher           Kind = "InvalidVoucher"
	VoucherExpired           Kind = "VoucherExpired"
	VoucherExhausted         Kind = "VoucherExhausted"
	MinOrderNotMet           Kind = "MinOrderNotMet"
	AmountMismatch           Kind = "AmountMismatch"
	OrderFinal               Kind = "OrderFinal"
	CancellationWindowClosed Kind = "CancellationWindowClosed"
	ChatDisabled             Kind = "ChatDisabled"
	RateLimitExceeded        Kind = "RateLimitExceeded"
	InvalidCoordinates       Kind = "InvalidCoordinates"
	InvalidPaymentProof      Kind = "InvalidPaymentProof"
	InvalidRequest           Kind = "InvalidRequest"
	InvalidState             Kind = "InvalidState"
	OrdersClosed             Kind = "OrdersClosed"
	DeliveryUnavailable      Kind = "DeliveryUnavailable"
	Internal                 Kind = "Internal"
)

type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is only set for RateLimitExceeded.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.E(k, ""))
// works as a kind check.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the caller-safe message for err. Non-typed errors are
// hidden behind a generic text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}

func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
