package domain

import "errors"

type Outcome string

const (
	OutcomeValid            Outcome = "VALID"
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeNotFound         Outcome = "NOT_FOUND"
	OutcomeNotYetActive     Outcome = "NOT_YET_ACTIVE"
	OutcomeExpired          Outcome = "EXPIRED"
	OutcomeDisabled         Outcome = "DISABLED"
	OutcomeLimitReached     Outcome = "LIMIT_REACHED"
	OutcomeStoreUnavailable Outcome = "STORE_UNAVAILABLE"
	OutcomeUnknown          Outcome = "UNKNOWN"
	OutcomeInvariantBroken  Outcome = "INVARIANT_VIOLATION"
	OutcomeInvalidRequest   Outcome = "INVALID_REQUEST"
)

// Accepted reports whether the outcome is a positive answer.
func (o Outcome) Accepted() bool {
	return o == OutcomeValid || o == OutcomeSuccess
}

// Rejection reports whether the outcome is a business rejection. Callers must
// not retry rejections.
func (o Outcome) Rejection() bool {
	switch o {
	case OutcomeNotFound, OutcomeNotYetActive, OutcomeExpired, OutcomeDisabled, OutcomeLimitReached:
		return true
	}
	return false
}

func (o Outcome) Message() string {
	switch o {
	case OutcomeValid:
		return "Coupon is valid for redemption"
	case OutcomeSuccess:
		return "Coupon redeemed successfully"
	case OutcomeNotFound:
		return "Coupon does not exist"
	case OutcomeNotYetActive:
		return "This coupon is not active yet"
	case OutcomeExpired:
		return "This coupon is expired"
	case OutcomeDisabled:
		return "This coupon is disabled"
	case OutcomeLimitReached:
		return "Maximum redemptions reached for this coupon"
	case OutcomeStoreUnavailable:
		return "Coupon store is temporarily unavailable, try again"
	case OutcomeUnknown:
		return "Redemption outcome is unknown, check the coupon before retrying"
	case OutcomeInvariantBroken:
		return "Internal error"
	case OutcomeInvalidRequest:
		return "Coupon code is required"
	}
	return string(o)
}

// OutcomeForError maps a ledger error onto the outcome recorded in the audit log.
func OutcomeForError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvariantViolation):
		return OutcomeInvariantBroken
	case errors.Is(err, ErrOutcomeUnknown):
		return OutcomeUnknown
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrEmptyCode), errors.Is(err, ErrInvalidCoupon):
		return OutcomeInvalidRequest
	}
	return OutcomeStoreUnavailable
}
