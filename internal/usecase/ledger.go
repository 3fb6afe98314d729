package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	db "github.com/azizikri/coupon-ledger/db/gen"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/metrics"
	"github.com/azizikri/coupon-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// LedgerService enforces "at most max_redemptions redemptions per coupon".
// Validate is advisory; MarkRedeemed is the only path that changes
// redeemed_count and re-checks everything under a row lock.
type LedgerService struct {
	store repository.Store
	audit AuditLog
	log   *slog.Logger
	opts  options
}

func NewLedgerService(store repository.Store, audit AuditLog, log *slog.Logger, opts ...Option) *LedgerService {
	return &LedgerService{
		store: store,
		audit: audit,
		log:   log.With(sl.Module("usecase.ledger")),
		opts:  buildOptions(opts),
	}
}

func (s *LedgerService) Validate(ctx context.Context, code string) (domain.ValidationResult, error) {
	start := time.Now()
	code = NormalizeCode(code)
	if code == "" {
		s.finish(ctx, domain.OperationValidate, code, domain.OutcomeInvalidRequest, domain.OutcomeInvalidRequest.Message(), domain.ErrEmptyCode, start)
		return domain.ValidationResult{Outcome: domain.OutcomeInvalidRequest}, domain.ErrEmptyCode
	}

	result := domain.ValidationResult{Code: code}
	var row db.Coupon
	err := s.opts.guard.Do(func() error {
		var err error
		row, err = s.store.GetCouponByCode(ctx, code)
		return err
	})

	switch {
	case errors.Is(err, domain.ErrNotFound):
		result.Outcome = domain.OutcomeNotFound
		err = nil
	case err == nil:
		c := toDomainCoupon(row)
		if err = c.CheckInvariant(); err == nil {
			result.Outcome = c.Check(s.opts.now())
			result.Coupon = &c
		}
	}

	if err != nil {
		result = domain.ValidationResult{Code: code, Outcome: domain.OutcomeForError(err)}
	}
	s.finish(ctx, domain.OperationValidate, code, result.Outcome, result.Outcome.Message(), err, start)
	return result, err
}

func (s *LedgerService) MarkRedeemed(ctx context.Context, code string) (domain.MarkResult, error) {
	start := time.Now()
	code = NormalizeCode(code)
	if code == "" {
		s.finish(ctx, domain.OperationMark, code, domain.OutcomeInvalidRequest, domain.OutcomeInvalidRequest.Message(), domain.ErrEmptyCode, start)
		return domain.MarkResult{Outcome: domain.OutcomeInvalidRequest}, domain.ErrEmptyCode
	}
	if len(RequestIDFrom(ctx)) > maxRequestIDLength {
		err := fmt.Errorf("%w: request id longer than %d characters", domain.ErrInvalidCoupon, maxRequestIDLength)
		s.finish(ctx, domain.OperationMark, code, domain.OutcomeInvalidRequest, err.Error(), err, start)
		return domain.MarkResult{Code: code, Outcome: domain.OutcomeInvalidRequest}, err
	}

	var result domain.MarkResult
	err := s.opts.guard.Do(func() error {
		err := s.store.ExecTx(ctx, func(q repository.Querier) error {
			return s.markTx(ctx, q, code, &result)
		})
		if errors.Is(err, repository.ErrCommitFailed) && result.Outcome == domain.OutcomeSuccess {
			return fmt.Errorf("%w: %w", domain.ErrOutcomeUnknown, err)
		}
		return err
	})

	if err != nil {
		result = domain.MarkResult{Code: code, Outcome: domain.OutcomeForError(err)}
	}

	details := result.Outcome.Message()
	switch {
	case result.Replayed:
		details = fmt.Sprintf("Replayed #%d", result.NewCount)
	case result.Outcome == domain.OutcomeSuccess:
		details = fmt.Sprintf("Redeemed #%d", result.NewCount)
	}
	s.finish(ctx, domain.OperationMark, code, result.Outcome, details, err, start)
	return result, err
}

// markTx is the atomic unit: lock the row, apply the shared predicate and
// increment by exactly one. Rejections commit nothing and return nil. A
// request id that already redeemed this coupon gets the stored result back.
func (s *LedgerService) markTx(ctx context.Context, q repository.Querier, code string, result *domain.MarkResult) error {
	*result = domain.MarkResult{Code: code}
	requestID := RequestIDFrom(ctx)

	if s.opts.lockTimeout > 0 {
		if err := q.SetLockTimeout(ctx, fmt.Sprintf("%dms", s.opts.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	row, err := q.GetCouponForUpdate(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		result.Outcome = domain.OutcomeNotFound
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock coupon: %w", err)
	}

	current := toDomainCoupon(row)
	if err := current.CheckInvariant(); err != nil {
		return err
	}

	if requestID != "" {
		prior, err := q.GetRedemption(ctx, requestID)
		switch {
		case err == nil:
			if prior.CouponCode != code {
				return fmt.Errorf("%w: request id %s already redeemed %s", domain.ErrInvalidCoupon, requestID, prior.CouponCode)
			}
			result.Outcome = domain.OutcomeSuccess
			result.NewCount = int(prior.RedeemedCount)
			result.Coupon = &current
			result.Replayed = true
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("look up redemption: %w", err)
		}
	}

	now := s.opts.now()
	if outcome := current.Check(now); outcome != domain.OutcomeValid {
		result.Outcome = outcome
		result.Coupon = &current
		return nil
	}

	updated, err := q.IncrementRedeemed(ctx, db.IncrementRedeemedParams{
		UpdatedAt: timestamptz(&now),
		Code:      code,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		result.Outcome = domain.OutcomeLimitReached
		result.Coupon = &current
		return nil
	}
	if err != nil {
		return fmt.Errorf("increment redeemed: %w", err)
	}

	next := toDomainCoupon(updated)
	if next.RedeemedCount != current.RedeemedCount+1 {
		return fmt.Errorf("%w: code=%s count moved %d -> %d inside one transaction",
			domain.ErrInvariantViolation, code, current.RedeemedCount, next.RedeemedCount)
	}
	if err := next.CheckInvariant(); err != nil {
		return err
	}

	if requestID != "" {
		err := q.InsertRedemption(ctx, db.InsertRedemptionParams{
			RequestID:     requestID,
			CouponCode:    code,
			RedeemedCount: int32(next.RedeemedCount),
		})
		if repository.IsUniqueViolation(err) {
			return fmt.Errorf("%w: request id %s already used", domain.ErrInvalidCoupon, requestID)
		}
		if err != nil {
			return fmt.Errorf("record redemption: %w", err)
		}
	}

	result.Outcome = domain.OutcomeSuccess
	result.NewCount = next.RedeemedCount
	result.Coupon = &next
	return nil
}

func (s *LedgerService) finish(ctx context.Context, op domain.Operation, code string, outcome domain.Outcome, details string, err error, start time.Time) {
	metrics.LedgerOutcomes.WithLabelValues(string(op), string(outcome)).Inc()
	metrics.LedgerDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())

	log := s.log.With(
		slog.String("op", string(op)),
		sl.Code(code),
		slog.String("outcome", string(outcome)),
	)
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		metrics.InvariantViolations.Inc()
		log.Error("redemption invariant violated", sl.Err(err))
	case errors.Is(err, domain.ErrEmptyCode), errors.Is(err, domain.ErrInvalidCoupon):
		log.Info("invalid redemption request", sl.Err(err))
	case err != nil:
		log.Warn("coupon store unavailable", sl.Err(err))
	case outcome.Rejection():
		log.Info("redemption rejected")
	default:
		log.Debug("redemption accepted")
	}

	recordAudit(ctx, s.log, s.audit, newAuditEntry(s.opts.now(), s.opts.actor, op, code, string(outcome), details))
}
