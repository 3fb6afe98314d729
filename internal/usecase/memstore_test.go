package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	db "github.com/azizikri/coupon-ledger/db/gen"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// memStore mimics the row locking of the PostgreSQL store: GetCouponForUpdate
// holds a per-code mutex until the transaction ends, and writes become
// visible only on commit.
type memStore struct {
	mu      sync.Mutex
	coupons map[string]db.Coupon
	locks   map[string]*sync.Mutex
	audit   []db.InsertAuditLogParams

	redemptions map[string]db.Redemption

	reads   int
	txCount int
}

func newMemStore(coupons ...db.Coupon) *memStore {
	m := &memStore{
		coupons:     make(map[string]db.Coupon),
		locks:       make(map[string]*sync.Mutex),
		redemptions: make(map[string]db.Redemption),
	}
	for _, c := range coupons {
		m.coupons[c.Code] = c
	}
	return m
}

func (m *memStore) rowLock(code string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[code]
	if !ok {
		l = &sync.Mutex{}
		m.locks[code] = l
	}
	return l
}

func (m *memStore) coupon(code string) (db.Coupon, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	return c, ok
}

func (m *memStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	m.mu.Lock()
	m.txCount++
	m.mu.Unlock()

	tx := &memTx{store: m, pending: make(map[string]db.Coupon), redemptions: make(map[string]db.Redemption)}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	for code, c := range tx.pending {
		m.coupons[code] = c
	}
	for id, r := range tx.redemptions {
		m.redemptions[id] = r
	}
	m.mu.Unlock()
	return nil
}

func (m *memStore) redemptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redemptions)
}

func (m *memStore) CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coupons[arg.Code]; ok {
		return db.Coupon{}, domain.ErrDuplicateCoupon
	}
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	c := db.Coupon{
		ID:             int64(len(m.coupons) + 1),
		Code:           arg.Code,
		Description:    arg.Description,
		IssuedTo:       arg.IssuedTo,
		Tags:           arg.Tags,
		MaxRedemptions: arg.MaxRedemptions,
		Status:         arg.Status,
		ValidFrom:      arg.ValidFrom,
		ExpiresAt:      arg.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.coupons[c.Code] = c
	return c, nil
}

func (m *memStore) GetCouponByCode(ctx context.Context, code string) (db.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	c, ok := m.coupons[code]
	if !ok {
		return db.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) SetCouponStatus(ctx context.Context, arg db.SetCouponStatusParams) (db.Coupon, error) {
	l := m.rowLock(arg.Code)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[arg.Code]
	if !ok {
		return db.Coupon{}, pgx.ErrNoRows
	}
	c.Status = arg.Status
	m.coupons[arg.Code] = c
	return c, nil
}

func (m *memStore) InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, arg)
	return nil
}

func (m *memStore) ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AuditLog, error) {
	return nil, nil
}

func (m *memStore) Ping(ctx context.Context) error {
	return nil
}

type memTx struct {
	store       *memStore
	held        []*sync.Mutex
	pending     map[string]db.Coupon
	redemptions map[string]db.Redemption
}

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
}

func (t *memTx) SetLockTimeout(ctx context.Context, timeout string) error {
	return nil
}

func (t *memTx) GetCouponForUpdate(ctx context.Context, code string) (db.Coupon, error) {
	l := t.store.rowLock(code)
	l.Lock()
	t.held = append(t.held, l)

	c, ok := t.store.coupon(code)
	if !ok {
		return db.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (t *memTx) IncrementRedeemed(ctx context.Context, arg db.IncrementRedeemedParams) (db.Coupon, error) {
	c, ok := t.pending[arg.Code]
	if !ok {
		c, ok = t.store.coupon(arg.Code)
		if !ok {
			return db.Coupon{}, pgx.ErrNoRows
		}
	}
	if c.RedeemedCount >= c.MaxRedemptions {
		return db.Coupon{}, pgx.ErrNoRows
	}
	c.RedeemedCount++
	c.UpdatedAt = arg.UpdatedAt
	t.pending[arg.Code] = c
	return c, nil
}

func (t *memTx) GetRedemption(ctx context.Context, requestID string) (db.Redemption, error) {
	if r, ok := t.redemptions[requestID]; ok {
		return r, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	r, ok := t.store.redemptions[requestID]
	if !ok {
		return db.Redemption{}, pgx.ErrNoRows
	}
	return r, nil
}

func (t *memTx) InsertRedemption(ctx context.Context, arg db.InsertRedemptionParams) error {
	t.store.mu.Lock()
	_, committed := t.store.redemptions[arg.RequestID]
	t.store.mu.Unlock()
	if _, ok := t.redemptions[arg.RequestID]; ok || committed {
		return &pgconn.PgError{Code: "23505"}
	}
	t.redemptions[arg.RequestID] = db.Redemption{
		RequestID:     arg.RequestID,
		CouponCode:    arg.CouponCode,
		RedeemedCount: arg.RedeemedCount,
	}
	return nil
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (a *auditRecorder) Record(ctx context.Context, entry domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditRecorder) snapshot() []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeCoupon(code string, max, redeemed int32) db.Coupon {
	return db.Coupon{
		Code:           code,
		MaxRedemptions: max,
		RedeemedCount:  redeemed,
		Status:         string(domain.StatusActive),
	}
}

func at(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
