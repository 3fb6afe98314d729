package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Sink is one destination for audit entries.
type Sink interface {
	Name() string
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// Multi writes every entry to all sinks concurrently. A failing sink does not
// stop the others; their errors are joined.
type Multi struct {
	sinks []Sink
	log   *slog.Logger
}

func NewMulti(log *slog.Logger, sinks ...Sink) *Multi {
	return &Multi{
		sinks: sinks,
		log:   log.With(sl.Module("audit")),
	}
}

func (m *Multi) Record(ctx context.Context, entry domain.AuditEntry) error {
	errs := make([]error, len(m.sinks))

	var g errgroup.Group
	for i, sink := range m.sinks {
		i, sink := i, sink
		g.Go(func() error {
			if err := sink.Record(ctx, entry); err != nil {
				metrics.AuditFailures.WithLabelValues(sink.Name()).Inc()
				m.log.Warn("audit sink failed",
					slog.String("sink", sink.Name()),
					sl.Code(entry.Code),
					sl.Err(err),
				)
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
