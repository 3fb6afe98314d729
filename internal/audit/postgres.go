package audit

import (
	"context"
	"fmt"

	db "github.com/azizikri/coupon-ledger/db/gen"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Inserter is the part of the store the Postgres sink needs.
type Inserter interface {
	InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) error
}

// PostgresSink appends entries to the audit_logs table. event_id is unique,
// so replaying the same entry is a no-op.
type PostgresSink struct {
	store Inserter
}

func NewPostgresSink(store Inserter) *PostgresSink {
	return &PostgresSink{store: store}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	params, err := toInsertParams(entry)
	if err != nil {
		return err
	}
	if err := s.store.InsertAuditLog(ctx, params); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func toInsertParams(entry domain.AuditEntry) (db.InsertAuditLogParams, error) {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return db.InsertAuditLogParams{}, fmt.Errorf("audit entry id %q: %w", entry.ID, err)
	}
	return db.InsertAuditLogParams{
		EventID:    pgtype.UUID{Bytes: id, Valid: true},
		Ts:         pgtype.Timestamptz{Time: entry.Timestamp, Valid: true},
		Actor:      entry.Actor,
		Operation:  string(entry.Operation),
		CouponCode: entry.Code,
		Outcome:    entry.Outcome,
		Details:    entry.Details,
	}, nil
}
