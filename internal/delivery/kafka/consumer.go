package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/azizikri/coupon-ledger/internal/config"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/usecase"
	"github.com/jpillora/backoff"
	"github.com/twmb/franz-go/pkg/kgo"
)

// producer is the part of *kgo.Client the consumer writes with.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type handlerFunc func(ctx context.Context, req RequestPayload) (*ResponsePayload, error)

type Consumer struct {
	client      *kgo.Client
	out         producer
	cfg         *config.Config
	backend     usecase.CouponGateway
	log         *slog.Logger
	backoff     *backoff.Backoff
	maxAttempts int
	ready       chan struct{}
}

// NewConsumer executes requests against backend, normally a DirectGateway.
func NewConsumer(cfg *config.Config, client *kgo.Client, backend usecase.CouponGateway, log *slog.Logger) *Consumer {
	return &Consumer{
		client:  client,
		out:     client,
		cfg:     cfg,
		backend: backend,
		log:     log.With(sl.Module("kafka.consumer")),
		backoff: &backoff.Backoff{
			Min:    cfg.KafkaRetryMinDelay,
			Max:    cfg.KafkaRetryMaxDelay,
			Factor: 2,
		},
		maxAttempts: cfg.RetryMaxAttempts(),
		ready:       make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	close(c.ready)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Warn("consumer poll error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				sl.Err(err),
			)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			c.processRecord(ctx, iter.Next())
		}

		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.log.Error("failed to commit records", sl.Err(err))
		}
	}
}

// StartRetry moves records from retry topics back to their request topic once
// their x-next-at time has passed.
func (c *Consumer) StartRetry(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()

			if nextAt, ok := retryNextAt(record); ok {
				if wait := time.Until(nextAt); wait > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(wait):
					}
				}
			}

			mainTopic := strings.TrimSuffix(record.Topic, TopicRetrySuffix) + TopicRequestSuffix
			newRecord := &kgo.Record{
				Topic:   mainTopic,
				Key:     record.Key,
				Value:   record.Value,
				Headers: record.Headers,
			}
			if err := c.out.ProduceSync(ctx, newRecord).FirstErr(); err != nil {
				c.log.Error("failed to requeue retry record", slog.String("topic", mainTopic), sl.Err(err))
			}
		}
		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.log.Error("failed to commit retry records", sl.Err(err))
		}
	}
}

func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) {
	switch record.Topic {
	case TopicCreateRequest:
		c.handle(ctx, record, "", c.create)
	case TopicGetRequest:
		c.handle(ctx, record, TopicGetRetry, c.get)
	case TopicDisableRequest:
		c.handle(ctx, record, "", c.disable)
	case TopicValidateRequest:
		c.handle(ctx, record, TopicValidateRetry, c.validate)
	case TopicMarkRequest:
		c.handle(ctx, record, "", c.mark)
	default:
		c.log.Warn("record from unexpected topic", slog.String("topic", record.Topic))
	}
}

// handle decodes the request, runs fn and replies. Transient failures are
// rescheduled on retryTopic when one is given; requests without a retry
// topic are answered immediately.
func (c *Consumer) handle(ctx context.Context, record *kgo.Record, retryTopic string, fn handlerFunc) {
	var req RequestPayload
	if err := json.Unmarshal(record.Value, &req); err != nil {
		c.sendError(ctx, record, ErrCodeInvalidRequest, "invalid request payload")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	resp, err := fn(reqCtx, req)
	cancel()

	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) && !errors.Is(err, domain.ErrOutcomeUnknown) && retryTopic != "" {
			attempt := recordAttempt(record)
			if attempt < c.maxAttempts {
				if rerr := c.scheduleRetry(ctx, record, retryTopic, attempt); rerr == nil {
					return
				}
			} else {
				c.sendError(ctx, record, ErrCodeStoreUnavailable, err.Error())
				return
			}
		}
		resp = errorResponse(req.CorrelationID, errorCode(err), err.Error())
	}

	resp.SchemaVersion = SchemaVersion
	resp.CorrelationID = req.CorrelationID
	c.sendResponse(ctx, req.ReplyTo, resp)
}

func (c *Consumer) create(ctx context.Context, req RequestPayload) (*ResponsePayload, error) {
	coupon, err := c.backend.CreateCoupon(ctx, req.newCoupon())
	if err != nil {
		return nil, err
	}
	resp := successResponse(req.CorrelationID)
	resp.Coupon = coupon
	return resp, nil
}

func (c *Consumer) get(ctx context.Context, req RequestPayload) (*ResponsePayload, error) {
	coupon, err := c.backend.GetCoupon(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	resp := successResponse(req.CorrelationID)
	resp.Coupon = coupon
	return resp, nil
}

func (c *Consumer) disable(ctx context.Context, req RequestPayload) (*ResponsePayload, error) {
	coupon, err := c.backend.DisableCoupon(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	resp := successResponse(req.CorrelationID)
	resp.Coupon = coupon
	return resp, nil
}

func (c *Consumer) validate(ctx context.Context, req RequestPayload) (*ResponsePayload, error) {
	result, err := c.backend.Validate(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	resp := successResponse(req.CorrelationID)
	resp.Outcome = result.Outcome
	resp.Coupon = result.Coupon
	return resp, nil
}

// mark keys the redemption on the request so that a redelivered record,
// after a crash or a rebalance before commit, is answered without redeeming
// again.
func (c *Consumer) mark(ctx context.Context, req RequestPayload) (*ResponsePayload, error) {
	ctx = usecase.WithRequestID(ctx, req.idempotencyKey())
	result, err := c.backend.MarkRedeemed(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	resp := successResponse(req.CorrelationID)
	resp.Outcome = result.Outcome
	resp.NewCount = result.NewCount
	resp.Replayed = result.Replayed
	resp.Coupon = result.Coupon
	return resp, nil
}

func (c *Consumer) scheduleRetry(ctx context.Context, record *kgo.Record, retryTopic string, attempt int) error {
	next := attempt + 1
	nextAt := time.Now().Add(c.backoff.ForAttempt(float64(attempt)))

	retry := &kgo.Record{
		Topic:   retryTopic,
		Key:     record.Key,
		Value:   record.Value,
		Headers: retryHeaders(record.Headers, next, nextAt),
	}
	if err := c.out.ProduceSync(ctx, retry).FirstErr(); err != nil {
		c.log.Error("failed to schedule retry", slog.String("topic", retryTopic), sl.Err(err))
		return err
	}
	c.log.Debug("request scheduled for retry",
		slog.String("topic", retryTopic),
		slog.Int("attempt", next),
		slog.Time("next_at", nextAt),
	)
	return nil
}

func (c *Consumer) sendResponse(ctx context.Context, topic string, resp *ResponsePayload) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("failed to encode response", sl.Err(err))
		return
	}
	record := &kgo.Record{
		Topic: topic,
		Value: payload,
	}
	if err := c.out.ProduceSync(ctx, record).FirstErr(); err != nil {
		c.log.Error("failed to send response", slog.String("topic", topic), sl.Err(err))
	}
}

// sendError answers the caller and parks the original request on the DLQ of
// its request topic.
func (c *Consumer) sendError(ctx context.Context, record *kgo.Record, code, message string) {
	var req RequestPayload
	_ = json.Unmarshal(record.Value, &req)

	resp := errorResponse(req.CorrelationID, code, message)
	c.sendResponse(ctx, req.ReplyTo, resp)

	dlqTopic := dlqTopicFor(record.Topic)
	dlqRecord := &kgo.Record{
		Topic: dlqTopic,
		Key:   record.Key,
		Value: record.Value,
		Headers: append(append([]kgo.RecordHeader(nil), record.Headers...),
			kgo.RecordHeader{Key: ErrorHeaderKey, Value: []byte(message)},
		),
	}
	if err := c.out.ProduceSync(ctx, dlqRecord).FirstErr(); err != nil {
		c.log.Error("failed to write dlq record", slog.String("topic", dlqTopic), sl.Err(err))
	}
}

func dlqTopicFor(topic string) string {
	if strings.HasSuffix(topic, TopicRetrySuffix) {
		topic = strings.TrimSuffix(topic, TopicRetrySuffix) + TopicRequestSuffix
	}
	return topic + TopicDLQSuffix
}

func retryNextAt(record *kgo.Record) (time.Time, bool) {
	value, ok := header(record.Headers, RetryHeaderNextAt)
	if !ok {
		return time.Time{}, false
	}
	nextAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return nextAt, true
}

// recordAttempt is the number of times the request has been handled before,
// zero for a fresh request.
func recordAttempt(record *kgo.Record) int {
	value, ok := header(record.Headers, RetryHeaderAttempt)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func retryHeaders(headers []kgo.RecordHeader, attempt int, nextAt time.Time) []kgo.RecordHeader {
	out := make([]kgo.RecordHeader, 0, len(headers)+2)
	for _, h := range headers {
		if h.Key == RetryHeaderAttempt || h.Key == RetryHeaderNextAt {
			continue
		}
		out = append(out, h)
	}
	return append(out,
		kgo.RecordHeader{Key: RetryHeaderAttempt, Value: []byte(strconv.Itoa(attempt))},
		kgo.RecordHeader{Key: RetryHeaderNextAt, Value: []byte(nextAt.UTC().Format(time.RFC3339Nano))},
	)
}

func header(headers []kgo.RecordHeader, key string) (string, bool) {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
