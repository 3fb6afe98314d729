package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/google/uuid"
)

func newAuditEntry(at time.Time, actor string, op domain.Operation, code, outcome, details string) domain.AuditEntry {
	return domain.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: at.UTC(),
		Actor:     actor,
		Operation: op,
		Code:      code,
		Outcome:   outcome,
		Details:   details,
	}
}

// recordAudit writes entry and only logs failures: the audit trail never
// changes the answer given to the caller. The write outlives a cancelled
// request so that abandoned calls are still recorded.
func recordAudit(ctx context.Context, log *slog.Logger, sink AuditLog, entry domain.AuditEntry) {
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := sink.Record(ctx, entry); err != nil {
		log.Error("failed to write audit entry",
			slog.String("op", string(entry.Operation)),
			sl.Code(entry.Code),
			slog.String("outcome", entry.Outcome),
			sl.Err(err),
		)
	}
}
