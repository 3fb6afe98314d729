package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	db "github.com/azizikri/coupon-ledger/db/gen"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/repository"
)

const (
	maxCodeLength        = 80
	maxDescriptionLength = 255
	maxIssuedToLength    = 120
	maxTagsLength        = 255
	defaultAuditLimit    = 50
	maxAuditLimit        = 500
	createAuditDetails   = "created via api"
	disableAuditDetails  = "disabled via api"
)

type CouponService struct {
	store repository.Store
	audit AuditLog
	log   *slog.Logger
	opts  options
}

func NewCouponService(store repository.Store, audit AuditLog, log *slog.Logger, opts ...Option) *CouponService {
	return &CouponService{
		store: store,
		audit: audit,
		log:   log.With(sl.Module("usecase.coupon")),
		opts:  buildOptions(opts),
	}
}

func (s *CouponService) CreateCoupon(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return nil, domain.ErrEmptyCode
	}
	if err := checkLengths(code, in); err != nil {
		return nil, err
	}

	maxRedemptions := in.MaxRedemptions
	if maxRedemptions < 1 {
		maxRedemptions = 1
	}
	if maxRedemptions > math.MaxInt32 {
		return nil, fmt.Errorf("%w: max_redemptions must not exceed %d", domain.ErrInvalidCoupon, math.MaxInt32)
	}

	now := s.opts.now()
	validFrom := now
	if in.ValidFrom != nil {
		validFrom = *in.ValidFrom
	}
	expiresAt := in.ExpiresAt
	if expiresAt == nil {
		expiresAt = domain.ExpiryFrom(validFrom, in.ValidityValue, in.ValidityUnit)
	}
	if expiresAt != nil && !expiresAt.After(validFrom) {
		return nil, fmt.Errorf("%w: expires_at must be after valid_from", domain.ErrInvalidCoupon)
	}

	var row db.Coupon
	err := s.opts.guard.Do(func() error {
		var err error
		row, err = s.store.CreateCoupon(ctx, db.CreateCouponParams{
			Code:           code,
			Description:    in.Description,
			IssuedTo:       in.IssuedTo,
			Tags:           in.Tags,
			MaxRedemptions: int32(maxRedemptions),
			Status:         string(domain.StatusActive),
			ValidFrom:      timestamptz(&validFrom),
			ExpiresAt:      timestamptz(expiresAt),
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrDuplicateCoupon) {
			s.log.Error("failed to create coupon", sl.Code(code), sl.Err(err))
		}
		return nil, err
	}

	coupon := toDomainCoupon(row)
	s.log.Info("coupon created", sl.Code(code), slog.Int("max_redemptions", coupon.MaxRedemptions))
	recordAudit(ctx, s.log, s.audit, newAuditEntry(now, s.opts.actor, domain.OperationCreate, code, string(domain.OutcomeSuccess), createAuditDetails))
	return &coupon, nil
}

// checkLengths mirrors the column widths of the coupons table.
func checkLengths(code string, in domain.NewCoupon) error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"code", code, maxCodeLength},
		{"description", in.Description, maxDescriptionLength},
		{"issued_to", in.IssuedTo, maxIssuedToLength},
		{"tags", in.Tags, maxTagsLength},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.max {
			return fmt.Errorf("%w: %s longer than %d characters", domain.ErrInvalidCoupon, f.name, f.max)
		}
	}
	return nil
}

func (s *CouponService) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrEmptyCode
	}

	var row db.Coupon
	err := s.opts.guard.Do(func() error {
		var err error
		row, err = s.store.GetCouponByCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, err
	}

	coupon := toDomainCoupon(row)
	return &coupon, nil
}

func (s *CouponService) DisableCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrEmptyCode
	}

	var row db.Coupon
	err := s.opts.guard.Do(func() error {
		var err error
		row, err = s.store.SetCouponStatus(ctx, db.SetCouponStatusParams{
			Status: string(domain.StatusDisabled),
			Code:   code,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	coupon := toDomainCoupon(row)
	s.log.Info("coupon disabled", sl.Code(code))
	recordAudit(ctx, s.log, s.audit, newAuditEntry(s.opts.now(), s.opts.actor, domain.OperationDisable, code, string(domain.OutcomeSuccess), disableAuditDetails))
	return &coupon, nil
}

func (s *CouponService) ListAuditLogs(ctx context.Context, code string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var rows []db.AuditLog
	err := s.opts.guard.Do(func() error {
		var err error
		rows, err = s.store.ListAuditLogs(ctx, db.ListAuditLogsParams{
			CouponCode: NormalizeCode(code),
			RowLimit:   int32(limit),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toDomainAudit(row))
	}
	return entries, nil
}

// Ping reports whether the store answers within d.
func (s *CouponService) Ping(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.store.Ping(ctx)
}
