package usecase

import (
	"context"

	"github.com/azizikri/coupon-ledger/internal/domain"
)

type CouponGateway interface {
	CreateCoupon(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	DisableCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	Validate(ctx context.Context, code string) (domain.ValidationResult, error)
	MarkRedeemed(ctx context.Context, code string) (domain.MarkResult, error)
}

// AuditLog is an append-only sink for redemption attempts and coupon changes.
type AuditLog interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

type AuditReader interface {
	ListAuditLogs(ctx context.Context, code string, limit int) ([]domain.AuditEntry, error)
}
