package kafka

import (
	"errors"
	"time"

	"github.com/azizikri/coupon-ledger/internal/domain"
)

const SchemaVersion = 1

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

const (
	ErrCodeDuplicateCoupon    = "DUPLICATE_COUPON"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeEmptyCode          = "EMPTY_CODE"
	ErrCodeInvalidCoupon      = "INVALID_COUPON"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeOutcomeUnknown     = "OUTCOME_UNKNOWN"
	ErrCodeInvariantViolation = "INVARIANT_VIOLATION"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

type RequestPayload struct {
	SchemaVersion  int        `json:"schema_version"`
	CorrelationID  string     `json:"correlation_id"`
	ReplyTo        string     `json:"reply_to"`
	RequestID      string     `json:"request_id,omitempty"`
	Code           string     `json:"code"`
	Description    string     `json:"description,omitempty"`
	IssuedTo       string     `json:"issued_to,omitempty"`
	Tags           string     `json:"tags,omitempty"`
	MaxRedemptions int        `json:"max_redemptions,omitempty"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ValidityValue  int        `json:"validity_value,omitempty"`
	ValidityUnit   string     `json:"validity_unit,omitempty"`
}

type ResponsePayload struct {
	SchemaVersion int            `json:"schema_version"`
	CorrelationID string         `json:"correlation_id"`
	Status        string         `json:"status"`
	ErrorCode     string         `json:"error_code,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Outcome       domain.Outcome `json:"outcome,omitempty"`
	NewCount      int            `json:"new_count,omitempty"`
	Replayed      bool           `json:"replayed,omitempty"`
	Coupon        *domain.Coupon `json:"coupon,omitempty"`
}

// idempotencyKey identifies a mark request across redeliveries. Callers may
// pin it with request_id; otherwise the correlation id is used.
func (r RequestPayload) idempotencyKey() string {
	if r.RequestID != "" {
		return r.RequestID
	}
	return r.CorrelationID
}

func (r RequestPayload) newCoupon() domain.NewCoupon {
	return domain.NewCoupon{
		Code:           r.Code,
		Description:    r.Description,
		IssuedTo:       r.IssuedTo,
		Tags:           r.Tags,
		MaxRedemptions: r.MaxRedemptions,
		ValidFrom:      r.ValidFrom,
		ExpiresAt:      r.ExpiresAt,
		ValidityValue:  r.ValidityValue,
		ValidityUnit:   r.ValidityUnit,
	}
}

func successResponse(correlationID string) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusSuccess,
	}
}

func errorResponse(correlationID, code, message string) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusError,
		ErrorCode:     code,
		ErrorMessage:  message,
	}
}

// errorCode names a domain error on the wire. ErrOutcomeUnknown is checked
// first because it may wrap a store error.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutcomeUnknown):
		return ErrCodeOutcomeUnknown
	case errors.Is(err, domain.ErrInvariantViolation):
		return ErrCodeInvariantViolation
	case errors.Is(err, domain.ErrEmptyCode):
		return ErrCodeEmptyCode
	case errors.Is(err, domain.ErrInvalidCoupon):
		return ErrCodeInvalidCoupon
	case errors.Is(err, domain.ErrDuplicateCoupon):
		return ErrCodeDuplicateCoupon
	case errors.Is(err, domain.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return ErrCodeStoreUnavailable
	}
	return ErrCodeInternalError
}

var codeErrors = map[string]error{
	ErrCodeOutcomeUnknown:     domain.ErrOutcomeUnknown,
	ErrCodeInvariantViolation: domain.ErrInvariantViolation,
	ErrCodeEmptyCode:          domain.ErrEmptyCode,
	ErrCodeInvalidCoupon:      domain.ErrInvalidCoupon,
	ErrCodeDuplicateCoupon:    domain.ErrDuplicateCoupon,
	ErrCodeNotFound:           domain.ErrNotFound,
	ErrCodeStoreUnavailable:   domain.ErrStoreUnavailable,
}

// remoteError carries the message produced by the consumer while still
// matching the domain sentinel with errors.Is.
type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.sentinel }

func mapError(code, message string) error {
	if message == "" {
		message = code
	}
	if sentinel, ok := codeErrors[code]; ok {
		return &remoteError{sentinel: sentinel, message: message}
	}
	return errors.New(message)
}
