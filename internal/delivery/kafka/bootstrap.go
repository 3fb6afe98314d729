package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/azizikri/coupon-ledger/internal/config"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topics lists every topic this instance produces to or consumes from.
func Topics(instanceID string) []string {
	topics := append(RequestTopics(), RetryTopics()...)
	for _, t := range RequestTopics() {
		topics = append(topics, t+TopicDLQSuffix)
	}
	return append(topics, TopicAudit, ReplyTopic(instanceID))
}

func EnsureTopics(ctx context.Context, client *kgo.Client, cfg *config.Config, log *slog.Logger) error {
	adm := kadm.NewClient(client)

	partitions := cfg.TopicPartitions()
	retryPartitions := cfg.RetryPartitions()
	replicationFactor := cfg.ReplicationFactor()

	for _, topic := range Topics(cfg.KafkaInstanceID) {
		p := partitions
		if strings.HasSuffix(topic, TopicRetrySuffix) || strings.HasSuffix(topic, TopicDLQSuffix) {
			p = retryPartitions
		}

		resp, err := adm.CreateTopics(ctx, int32(p), replicationFactor, nil, topic)
		if err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}
		for _, detail := range resp {
			if detail.Err != nil && !strings.Contains(detail.Err.Error(), "already exists") {
				return fmt.Errorf("failed to create topic %s: %w", detail.Topic, detail.Err)
			}
		}
	}

	log.Info("kafka topics ensured")
	return nil
}
