package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("coupon not found")
	ErrDuplicateCoupon    = errors.New("coupon already exists")
	ErrEmptyCode          = errors.New("coupon code is required")
	ErrInvalidCoupon      = errors.New("invalid coupon")
	ErrStoreUnavailable   = errors.New("coupon store unavailable")
	ErrOutcomeUnknown     = errors.New("redemption outcome unknown")
	ErrInvariantViolation = errors.New("redemption invariant violated")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusDisabled:
		return true
	}
	return false
}

type Coupon struct {
	Code           string     `json:"code"`
	Description    string     `json:"description,omitempty"`
	IssuedTo       string     `json:"issued_to,omitempty"`
	Tags           string     `json:"tags,omitempty"`
	MaxRedemptions int        `json:"max_redemptions"`
	RedeemedCount  int        `json:"redeemed_count"`
	Status         Status     `json:"status"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Check is the redemption predicate shared by validate and mark. It returns
// OutcomeValid or the first rejection that applies at now. A passed
// expires_at wins over every other rejection.
func (c Coupon) Check(now time.Time) Outcome {
	switch {
	case c.ExpiredAt(now):
		return OutcomeExpired
	case c.Status == StatusDisabled:
		return OutcomeDisabled
	case c.Status == StatusExpired:
		return OutcomeExpired
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		return OutcomeNotYetActive
	case c.Status != StatusActive:
		return OutcomeDisabled
	case c.RedeemedCount >= c.MaxRedemptions:
		return OutcomeLimitReached
	}
	return OutcomeValid
}

// CheckInvariant reports ErrInvariantViolation when the stored counters are
// outside 0 <= redeemed_count <= max_redemptions.
func (c Coupon) CheckInvariant() error {
	if c.RedeemedCount < 0 || c.RedeemedCount > c.MaxRedemptions {
		return fmt.Errorf("%w: code=%s redeemed_count=%d max_redemptions=%d",
			ErrInvariantViolation, c.Code, c.RedeemedCount, c.MaxRedemptions)
	}
	return nil
}

// ExpiredAt reports whether expires_at lies strictly before now. The coupon
// is still redeemable at the expires_at instant itself.
func (c Coupon) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// StatusAt is the effective status at now, as shown to operators.
func (c Coupon) StatusAt(now time.Time) Status {
	if c.Status == StatusActive && c.ExpiredAt(now) {
		return StatusExpired
	}
	return c.Status
}

type NewCoupon struct {
	Code           string
	Description    string
	IssuedTo       string
	Tags           string
	MaxRedemptions int
	ValidFrom      *time.Time
	ExpiresAt      *time.Time
	ValidityValue  int
	ValidityUnit   string
}

// ExpiryFrom returns from plus value days, or value hours when unit is one of
// "h", "hour" or "hours". A non-positive value means the coupon never expires.
func ExpiryFrom(from time.Time, value int, unit string) *time.Time {
	if value <= 0 {
		return nil
	}
	var at time.Time
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "h", "hour", "hours":
		at = from.Add(time.Duration(value) * time.Hour)
	default:
		at = from.AddDate(0, 0, value)
	}
	return &at
}

type ValidationResult struct {
	Code    string  `json:"code"`
	Outcome Outcome `json:"outcome"`
	Coupon  *Coupon `json:"coupon,omitempty"`
}

type MarkResult struct {
	Code     string  `json:"code"`
	Outcome  Outcome `json:"outcome"`
	NewCount int     `json:"new_count,omitempty"`
	Coupon   *Coupon `json:"coupon,omitempty"`
	// Replayed is set when the request id was already redeemed and the
	// stored result is returned instead of redeeming again.
	Replayed bool `json:"replayed,omitempty"`
}

type Operation string

const (
	OperationValidate Operation = "validate"
	OperationMark     Operation = "mark"
	OperationCreate   Operation = "create"
	OperationDisable  Operation = "disable"
)

type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Operation Operation `json:"operation"`
	Code      string    `json:"code"`
	Outcome   string    `json:"outcome"`
	Details   string    `json:"details,omitempty"`
}
