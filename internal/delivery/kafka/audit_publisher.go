package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

// AuditPublisher streams audit entries to the coupon.audit topic, keyed by
// coupon code so entries for one coupon stay ordered.
type AuditPublisher struct {
	out producer
}

func NewAuditPublisher(client *kgo.Client) *AuditPublisher {
	return &AuditPublisher{out: client}
}

func (p *AuditPublisher) Name() string { return "kafka" }

func (p *AuditPublisher) Record(ctx context.Context, entry domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	record := &kgo.Record{
		Topic: TopicAudit,
		Key:   []byte(entry.Code),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "operation", Value: []byte(entry.Operation)},
		},
	}
	if err := p.out.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}
