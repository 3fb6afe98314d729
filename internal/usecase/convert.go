package usecase

import (
	"strings"
	"time"

	db "github.com/azizikri/coupon-ledger/db/gen"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func toDomainCoupon(c db.Coupon) domain.Coupon {
	return domain.Coupon{
		Code:           c.Code,
		Description:    c.Description,
		IssuedTo:       c.IssuedTo,
		Tags:           c.Tags,
		MaxRedemptions: int(c.MaxRedemptions),
		RedeemedCount:  int(c.RedeemedCount),
		Status:         domain.Status(c.Status),
		ValidFrom:      timePtr(c.ValidFrom),
		ExpiresAt:      timePtr(c.ExpiresAt),
		CreatedAt:      c.CreatedAt.Time,
		UpdatedAt:      c.UpdatedAt.Time,
	}
}

func toDomainAudit(a db.AuditLog) domain.AuditEntry {
	entry := domain.AuditEntry{
		Timestamp: a.Ts.Time,
		Actor:     a.Actor,
		Operation: domain.Operation(a.Operation),
		Code:      a.CouponCode,
		Outcome:   a.Outcome,
		Details:   a.Details,
	}
	if a.EventID.Valid {
		entry.ID = uuid.UUID(a.EventID.Bytes).String()
	}
	return entry
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
