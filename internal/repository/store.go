package repository

import (
	"context"
	"fmt"

	db "github.com/azizikri/coupon-ledger/db/gen"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	ExecTx(ctx context.Context, fn func(Querier) error) error
	CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (db.Coupon, error)
	SetCouponStatus(ctx context.Context, arg db.SetCouponStatusParams) (db.Coupon, error)
	InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) error
	ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AuditLog, error)
	Ping(ctx context.Context) error
}

// Querier is the set of queries that run inside a redemption transaction.
type Querier interface {
	SetLockTimeout(ctx context.Context, timeout string) error
	GetCouponForUpdate(ctx context.Context, code string) (db.Coupon, error)
	IncrementRedeemed(ctx context.Context, arg db.IncrementRedeemedParams) (db.Coupon, error)
	GetRedemption(ctx context.Context, requestID string) (db.Redemption, error)
	InsertRedemption(ctx context.Context, arg db.InsertRedemptionParams) error
}

type store struct {
	pool    *pgxpool.Pool
	queries *db.Queries
}

func New(pool *pgxpool.Pool) Store {
	return &store{
		pool:    pool,
		queries: db.New(pool),
	}
}

func (s *store) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	q := s.queries.WithTx(tx)
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx err: %w, rollback err: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return nil
}

func (s *store) CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error) {
	return s.queries.CreateCoupon(ctx, arg)
}

func (s *store) GetCouponByCode(ctx context.Context, code string) (db.Coupon, error) {
	return s.queries.GetCouponByCode(ctx, code)
}

func (s *store) SetCouponStatus(ctx context.Context, arg db.SetCouponStatusParams) (db.Coupon, error) {
	return s.queries.SetCouponStatus(ctx, arg)
}

func (s *store) InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) error {
	return s.queries.InsertAuditLog(ctx, arg)
}

func (s *store) ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AuditLog, error) {
	return s.queries.ListAuditLogs(ctx, arg)
}

func (s *store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
