package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/azizikri/coupon-ledger/internal/config"
	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/usecase"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

var errReplyTimeout = errors.New("timeout waiting for response")

type Gateway struct {
	out         producer
	cfg         *config.Config
	log         *slog.Logger
	timeout     time.Duration
	pendingResp sync.Map
}

func NewGateway(cfg *config.Config, client *kgo.Client, log *slog.Logger) *Gateway {
	return &Gateway{
		out:     client,
		cfg:     cfg,
		log:     log.With(sl.Module("kafka.gateway")),
		timeout: RequestTimeout,
	}
}

func (g *Gateway) newRequest(code string) RequestPayload {
	return RequestPayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: uuid.New().String(),
		ReplyTo:       ReplyTopic(g.cfg.KafkaInstanceID),
		Code:          usecase.NormalizeCode(code),
	}
}

func (g *Gateway) CreateCoupon(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
	req := g.newRequest(in.Code)
	req.Description = in.Description
	req.IssuedTo = in.IssuedTo
	req.Tags = in.Tags
	req.MaxRedemptions = in.MaxRedemptions
	req.ValidFrom = in.ValidFrom
	req.ExpiresAt = in.ExpiresAt
	req.ValidityValue = in.ValidityValue
	req.ValidityUnit = in.ValidityUnit

	resp, err := g.call(ctx, TopicCreateRequest, req)
	if err != nil {
		return nil, err
	}
	return resp.Coupon, nil
}

func (g *Gateway) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	resp, err := g.call(ctx, TopicGetRequest, g.newRequest(code))
	if err != nil {
		return nil, err
	}
	return resp.Coupon, nil
}

func (g *Gateway) DisableCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	resp, err := g.call(ctx, TopicDisableRequest, g.newRequest(code))
	if err != nil {
		return nil, err
	}
	return resp.Coupon, nil
}

func (g *Gateway) Validate(ctx context.Context, code string) (domain.ValidationResult, error) {
	req := g.newRequest(code)
	resp, err := g.call(ctx, TopicValidateRequest, req)
	if err != nil {
		return domain.ValidationResult{Code: req.Code, Outcome: domain.OutcomeForError(err)}, err
	}
	return domain.ValidationResult{Code: req.Code, Outcome: resp.Outcome, Coupon: resp.Coupon}, nil
}

func (g *Gateway) MarkRedeemed(ctx context.Context, code string) (domain.MarkResult, error) {
	req := g.newRequest(code)
	req.RequestID = usecase.RequestIDFrom(ctx)
	resp, err := g.call(ctx, TopicMarkRequest, req)
	if err != nil {
		return domain.MarkResult{Code: req.Code, Outcome: domain.OutcomeForError(err)}, err
	}
	return domain.MarkResult{
		Code:     req.Code,
		Outcome:  resp.Outcome,
		NewCount: resp.NewCount,
		Coupon:   resp.Coupon,
		Replayed: resp.Replayed,
	}, nil
}

// call sends req and waits for the reply. Any transport failure of a mark
// request leaves its outcome unknown. Validate and mark requests are sent
// even without a code so that the consumer audits the attempt.
func (g *Gateway) call(ctx context.Context, topic string, req RequestPayload) (*ResponsePayload, error) {
	if req.Code == "" && topic != TopicValidateRequest && topic != TopicMarkRequest {
		return nil, domain.ErrEmptyCode
	}

	resp, err := g.requestReply(ctx, topic, []byte(req.Code), req)
	switch {
	case err == nil:
	case topic == TopicMarkRequest:
		return nil, fmt.Errorf("%w: %v", domain.ErrOutcomeUnknown, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if resp.Status == StatusError {
		return nil, mapError(resp.ErrorCode, resp.ErrorMessage)
	}
	return resp, nil
}

func (g *Gateway) requestReply(ctx context.Context, topic string, key []byte, req RequestPayload) (*ResponsePayload, error) {
	respChan := make(chan *ResponsePayload, 1)
	g.pendingResp.Store(req.CorrelationID, respChan)
	defer g.pendingResp.Delete(req.CorrelationID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: payload,
	}

	if err := g.out.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, fmt.Errorf("%w: produce request: %w", domain.ErrStoreUnavailable, err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errReplyTimeout
	}
}

func (g *Gateway) HandleResponse(payload []byte) {
	var resp ResponsePayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		g.log.Warn("failed to decode response payload", sl.Err(err))
		return
	}

	if ch, ok := g.pendingResp.Load(resp.CorrelationID); ok {
		select {
		case ch.(chan *ResponsePayload) <- &resp:
		default:
			g.log.Debug("duplicate response dropped", slog.String("correlation_id", resp.CorrelationID))
		}
		return
	}

	g.log.Debug("no pending response", slog.String("correlation_id", resp.CorrelationID))
}

// Listen feeds replies from the instance reply topic to waiting callers.
func (g *Gateway) Listen(ctx context.Context, client *kgo.Client) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			g.HandleResponse(iter.Next().Value)
		}
	}
}

var _ usecase.CouponGateway = (*Gateway)(nil)
