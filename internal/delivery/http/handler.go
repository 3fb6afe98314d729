package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/lib/validate"
	"github.com/azizikri/coupon-ledger/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const (
	retryAfterSeconds = "1"
	// IdempotencyKeyHeader lets a client retry a mark safely: repeats with the
	// same key return the first result instead of redeeming again.
	IdempotencyKeyHeader = "Idempotency-Key"
)

type RedeemRequest struct {
	Code string `json:"code" validate:"required,max=80"`
}

type CreateCouponRequest struct {
	Code           string     `json:"code" validate:"required,max=80"`
	Description    string     `json:"description,omitempty" validate:"max=255"`
	IssuedTo       string     `json:"issued_to,omitempty" validate:"max=120"`
	Tags           string     `json:"tags,omitempty" validate:"max=255"`
	MaxRedemptions int        `json:"max_redemptions" validate:"gte=0,lte=2147483647"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ValidityValue  int        `json:"validity_value,omitempty" validate:"gte=0"`
	ValidityUnit   string     `json:"validity_unit,omitempty" validate:"omitempty,oneof=d day days h hour hours"`
}

type RedeemResponse struct {
	OK             bool           `json:"ok"`
	Code           string         `json:"code"`
	Outcome        domain.Outcome `json:"outcome"`
	Message        string         `json:"message"`
	RedeemedCount  *int           `json:"redeemed_count,omitempty"`
	MaxRedemptions *int           `json:"max_redemptions,omitempty"`
	ValidFrom      *time.Time     `json:"valid_from,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	Retryable      bool           `json:"retryable,omitempty"`
	Replayed       bool           `json:"replayed,omitempty"`
}

type CouponResponse struct {
	Code           string        `json:"code"`
	Description    string        `json:"description,omitempty"`
	IssuedTo       string        `json:"issued_to,omitempty"`
	Tags           string        `json:"tags,omitempty"`
	MaxRedemptions int           `json:"max_redemptions"`
	RedeemedCount  int           `json:"redeemed_count"`
	Remaining      int           `json:"remaining"`
	Status         domain.Status `json:"status"`
	ValidFrom      *time.Time    `json:"valid_from,omitempty"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type AuditLogsResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
}

type ErrorResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

type Handler struct {
	gateway usecase.CouponGateway
	audit   usecase.AuditReader
	log     *slog.Logger
	now     func() time.Time
}

func NewHandler(gateway usecase.CouponGateway, audit usecase.AuditReader, log *slog.Logger) *Handler {
	return &Handler{
		gateway: gateway,
		audit:   audit,
		log:     log.With(sl.Module("http.handler")),
		now:     time.Now,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/redeem/validate", h.Validate)
		r.Post("/redeem/mark", h.MarkRedeemed)
		r.Post("/coupons", h.CreateCoupon)
		r.Get("/coupons/{code}", h.GetCoupon)
		r.Post("/coupons/{code}/disable", h.DisableCoupon)
		r.Get("/audit-logs", h.ListAuditLogs)
	})
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.gateway.Validate(r.Context(), req.Code)
	if err != nil {
		h.redeemError(w, r, usecase.NormalizeCode(req.Code), err)
		return
	}

	status := http.StatusOK
	if result.Outcome == domain.OutcomeNotFound {
		status = http.StatusNotFound
	}
	render.Status(r, status)
	render.JSON(w, r, redeemResponse(result.Code, result.Outcome, result.Coupon))
}

func (h *Handler) MarkRedeemed(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := usecase.WithRequestID(r.Context(), strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)))
	result, err := h.gateway.MarkRedeemed(ctx, req.Code)
	if err != nil {
		h.redeemError(w, r, usecase.NormalizeCode(req.Code), err)
		return
	}

	status := http.StatusOK
	switch {
	case result.Outcome == domain.OutcomeNotFound:
		status = http.StatusNotFound
	case result.Outcome.Rejection():
		status = http.StatusConflict
	}

	resp := redeemResponse(result.Code, result.Outcome, result.Coupon)
	if result.Outcome == domain.OutcomeSuccess {
		count := result.NewCount
		resp.RedeemedCount = &count
		resp.Replayed = result.Replayed
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if !h.decode(w, r, &req) {
		return
	}

	coupon, err := h.gateway.CreateCoupon(r.Context(), domain.NewCoupon{
		Code:           req.Code,
		Description:    req.Description,
		IssuedTo:       req.IssuedTo,
		Tags:           req.Tags,
		MaxRedemptions: req.MaxRedemptions,
		ValidFrom:      req.ValidFrom,
		ExpiresAt:      req.ExpiresAt,
		ValidityValue:  req.ValidityValue,
		ValidityUnit:   req.ValidityUnit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.couponResponse(coupon))
}

func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.gateway.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, h.couponResponse(coupon))
}

func (h *Handler) DisableCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.gateway.DisableCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, h.couponResponse(coupon))
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, r, http.StatusBadRequest, "limit must be a non-negative integer", false)
			return
		}
		limit = n
	}

	entries, err := h.audit.ListAuditLogs(r.Context(), r.URL.Query().Get("code"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	render.JSON(w, r, AuditLogsResponse{Entries: entries})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid request body", false)
		return false
	}
	if err := validate.Struct(v); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), false)
		return false
	}
	return true
}

// redeemError answers a ledger call that did not produce an outcome. The
// outcome field tells callers whether retrying is safe.
func (h *Handler) redeemError(w http.ResponseWriter, r *http.Request, code string, err error) {
	status, _, retryable := statusFor(err)
	if status == http.StatusBadRequest {
		h.respondError(w, r, status, err.Error(), false)
		return
	}
	if retryable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if status == http.StatusInternalServerError {
		h.log.Error("ledger call failed", sl.Code(code), sl.Err(err))
	}

	outcome := domain.OutcomeForError(err)
	render.Status(r, status)
	render.JSON(w, r, RedeemResponse{
		OK:        false,
		Code:      code,
		Outcome:   outcome,
		Message:   outcome.Message(),
		Retryable: retryable,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message, retryable := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", r.URL.Path), sl.Err(err))
	}
	h.respondError(w, r, status, message, retryable)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string, retryable bool) {
	if retryable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{OK: false, Error: message, Retryable: retryable})
}

// statusFor maps a domain error to an HTTP status, a client-safe message and
// whether the request may be retried.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, domain.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout, domain.OutcomeUnknown.Message(), false
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusInternalServerError, "internal server error", false
	case errors.Is(err, domain.ErrEmptyCode), errors.Is(err, domain.ErrInvalidCoupon):
		return http.StatusBadRequest, err.Error(), false
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "coupon not found", false
	case errors.Is(err, domain.ErrDuplicateCoupon):
		return http.StatusConflict, "coupon already exists", false
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, domain.OutcomeStoreUnavailable.Message(), true
	}
	return http.StatusInternalServerError, "internal server error", false
}

func redeemResponse(code string, outcome domain.Outcome, c *domain.Coupon) RedeemResponse {
	resp := RedeemResponse{
		OK:      outcome.Accepted(),
		Code:    code,
		Outcome: outcome,
		Message: outcome.Message(),
	}
	if c != nil {
		redeemed, limit := c.RedeemedCount, c.MaxRedemptions
		resp.RedeemedCount = &redeemed
		resp.MaxRedemptions = &limit
		resp.ValidFrom = c.ValidFrom
		resp.ExpiresAt = c.ExpiresAt
	}
	return resp
}

func (h *Handler) couponResponse(c *domain.Coupon) CouponResponse {
	if c == nil {
		return CouponResponse{}
	}
	return CouponResponse{
		Code:           c.Code,
		Description:    c.Description,
		IssuedTo:       c.IssuedTo,
		Tags:           c.Tags,
		MaxRedemptions: c.MaxRedemptions,
		RedeemedCount:  c.RedeemedCount,
		Remaining:      c.MaxRedemptions - c.RedeemedCount,
		Status:         c.StatusAt(h.now()),
		ValidFrom:      c.ValidFrom,
		ExpiresAt:      c.ExpiresAt,
		CreatedAt:      c.CreatedAt,
	}
}
