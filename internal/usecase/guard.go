package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/metrics"
	"github.com/azizikri/coupon-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker"
)

// StoreGuard runs store calls behind a circuit breaker and turns raw store
// errors into domain errors. Business answers (missing rows, duplicates,
// invariant checks) never count as breaker failures.
type StoreGuard struct {
	cb *gobreaker.CircuitBreaker
}

func NewStoreGuard(name string, maxFailures uint32, openTimeout time.Duration) *StoreGuard {
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsSuccessful: healthyStore,
	}
	return &StoreGuard{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (g *StoreGuard) Do(fn func() error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return classify(err)
}

func (g *StoreGuard) State() gobreaker.State {
	return g.cb.State()
}

func healthyStore(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, pgx.ErrNoRows),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateCoupon),
		errors.Is(err, domain.ErrInvalidCoupon),
		errors.Is(err, domain.ErrEmptyCode),
		errors.Is(err, domain.ErrInvariantViolation),
		errors.Is(err, context.Canceled),
		repository.IsUniqueViolation(err),
		repository.IsCheckViolation(err),
		repository.IsDataException(err),
		repository.IsLockTimeout(err):
		return true
	}
	return false
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateCoupon),
		errors.Is(err, domain.ErrInvalidCoupon),
		errors.Is(err, domain.ErrEmptyCode),
		errors.Is(err, domain.ErrInvariantViolation),
		errors.Is(err, domain.ErrOutcomeUnknown),
		errors.Is(err, domain.ErrStoreUnavailable):
		return err
	case repository.IsUniqueViolation(err):
		return domain.ErrDuplicateCoupon
	case repository.IsDataException(err):
		return fmt.Errorf("%w: %v", domain.ErrInvalidCoupon, err)
	case repository.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit breaker: %v", domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
