package kafka

import (
	"context"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/usecase"
)

// DirectGateway calls the services in process. It backs the HTTP API when
// event driven mode is off and executes requests taken from Kafka.
type DirectGateway struct {
	ledger  *usecase.LedgerService
	coupons *usecase.CouponService
}

func NewDirectGateway(ledger *usecase.LedgerService, coupons *usecase.CouponService) usecase.CouponGateway {
	return &DirectGateway{ledger: ledger, coupons: coupons}
}

func (g *DirectGateway) CreateCoupon(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
	return g.coupons.CreateCoupon(ctx, in)
}

func (g *DirectGateway) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	return g.coupons.GetCoupon(ctx, code)
}

func (g *DirectGateway) DisableCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	return g.coupons.DisableCoupon(ctx, code)
}

func (g *DirectGateway) Validate(ctx context.Context, code string) (domain.ValidationResult, error) {
	return g.ledger.Validate(ctx, code)
}

func (g *DirectGateway) MarkRedeemed(ctx context.Context, code string) (domain.MarkResult, error) {
	return g.ledger.MarkRedeemed(ctx, code)
}
