package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"github.com/azizikri/coupon-ledger/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type mockGateway struct {
	createFn   func(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error)
	getFn      func(ctx context.Context, code string) (*domain.Coupon, error)
	disableFn  func(ctx context.Context, code string) (*domain.Coupon, error)
	validateFn func(ctx context.Context, code string) (domain.ValidationResult, error)
	markFn     func(ctx context.Context, code string) (domain.MarkResult, error)
}

func (m *mockGateway) CreateCoupon(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
	return m.createFn(ctx, in)
}

func (m *mockGateway) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	return m.getFn(ctx, code)
}

func (m *mockGateway) DisableCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	return m.disableFn(ctx, code)
}

func (m *mockGateway) Validate(ctx context.Context, code string) (domain.ValidationResult, error) {
	return m.validateFn(ctx, code)
}

func (m *mockGateway) MarkRedeemed(ctx context.Context, code string) (domain.MarkResult, error) {
	return m.markFn(ctx, code)
}

type mockAuditReader struct {
	listFn func(ctx context.Context, code string, limit int) ([]domain.AuditEntry, error)
}

func (m *mockAuditReader) ListAuditLogs(ctx context.Context, code string, limit int) ([]domain.AuditEntry, error) {
	return m.listFn(ctx, code, limit)
}

func newTestRouter(gw *mockGateway, audit *mockAuditReader) http.Handler {
	h := NewHandler(gw, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(Metrics)
	h.Routes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRedeem(t *testing.T, rec *httptest.ResponseRecorder) RedeemResponse {
	t.Helper()
	var resp RedeemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestValidate_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     domain.ValidationResult
		err        error
		wantStatus int
		wantOK     bool
	}{
		{
			name: "valid",
			result: domain.ValidationResult{Code: "SAVE10", Outcome: domain.OutcomeValid,
				Coupon: &domain.Coupon{Code: "SAVE10", MaxRedemptions: 3, RedeemedCount: 2}},
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "expired is still an answer",
			result:     domain.ValidationResult{Code: "OLD", Outcome: domain.OutcomeExpired},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown code",
			result:     domain.ValidationResult{Code: "GHOST", Outcome: domain.OutcomeNotFound},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "store down",
			err:        fmt.Errorf("%w: dial tcp", domain.ErrStoreUnavailable),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{validateFn: func(ctx context.Context, code string) (domain.ValidationResult, error) {
				return tt.result, tt.err
			}}
			rec := doJSON(t, newTestRouter(gw, nil), http.MethodPost, "/api/redeem/validate", RedeemRequest{Code: "SAVE10"})

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			resp := decodeRedeem(t, rec)
			if resp.OK != tt.wantOK {
				t.Fatalf("expected ok=%v, got %+v", tt.wantOK, resp)
			}
		})
	}
}

func TestValidate_ReportsCounts(t *testing.T) {
	gw := &mockGateway{validateFn: func(ctx context.Context, code string) (domain.ValidationResult, error) {
		return domain.ValidationResult{Code: code, Outcome: domain.OutcomeValid,
			Coupon: &domain.Coupon{Code: code, MaxRedemptions: 3, RedeemedCount: 2}}, nil
	}}
	rec := doJSON(t, newTestRouter(gw, nil), http.MethodPost, "/api/redeem/validate", RedeemRequest{Code: "SAVE10"})

	resp := decodeRedeem(t, rec)
	if resp.RedeemedCount == nil || *resp.RedeemedCount != 2 || resp.MaxRedemptions == nil || *resp.MaxRedemptions != 3 {
		t.Fatalf("expected counts 2/3, got %+v", resp)
	}
}

func TestValidate_StoreDownSetsRetryAfter(t *testing.T) {
	gw := &mockGateway{validateFn: func(ctx context.Context, code string) (domain.ValidationResult, error) {
		return domain.ValidationResult{}, domain.ErrStoreUnavailable
	}}
	rec := doJSON(t, newTestRouter(gw, nil), http.MethodPost, "/api/redeem/validate", RedeemRequest{Code: "SAVE10"})

	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	resp := decodeRedeem(t, rec)
	if !resp.Retryable || resp.Outcome != domain.OutcomeStoreUnavailable {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMarkRedeemed_StatusMapping(t *testing.T) {
	tests := []struct {
		name          string
		result        domain.MarkResult
		err           error
		wantStatus    int
		wantRetryable bool
	}{
		{"success", domain.MarkResult{Code: "SAVE10", Outcome: domain.OutcomeSuccess, NewCount: 3}, nil, http.StatusOK, false},
		{"limit reached", domain.MarkResult{Code: "SAVE10", Outcome: domain.OutcomeLimitReached}, nil, http.StatusConflict, false},
		{"disabled", domain.MarkResult{Code: "SAVE10", Outcome: domain.OutcomeDisabled}, nil, http.StatusConflict, false},
		{"not yet active", domain.MarkResult{Code: "SAVE10", Outcome: domain.OutcomeNotYetActive}, nil, http.StatusConflict, false},
		{"not found", domain.MarkResult{Code: "SAVE10", Outcome: domain.OutcomeNotFound}, nil, http.StatusNotFound, false},
		{"store down", domain.MarkResult{}, fmt.Errorf("%w: breaker open", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, true},
		{"outcome unknown", domain.MarkResult{}, fmt.Errorf("%w: commit", domain.ErrOutcomeUnknown), http.StatusGatewayTimeout, false},
		{"invariant", domain.MarkResult{}, fmt.Errorf("%w: 4/3", domain.ErrInvariantViolation), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{markFn: func(ctx context.Context, code string) (domain.MarkResult, error) {
				return tt.result, tt.err
			}}
			rec := doJSON(t, newTestRouter(gw, nil), http.MethodPost, "/api/redeem/mark", RedeemRequest{Code: "SAVE10"})

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			resp := decodeRedeem(t, rec)
			if resp.Retryable != tt.wantRetryable {
				t.Fatalf("expected retryable=%v, got %+v", tt.wantRetryable, resp)
			}
			if tt.result.Outcome == domain.OutcomeSuccess {
				if resp.RedeemedCount == nil || *resp.RedeemedCount != 3 {
					t.Fatalf("expected redeemed_count 3, got %+v", resp)
				}
			}
		})
	}
}

func TestRedeem_BadRequests(t *testing.T) {
	gw := &mockGateway{
		markFn: func(ctx context.Context, code string) (domain.MarkResult, error) {
			return domain.MarkResult{}, domain.ErrEmptyCode
		},
	}
	router := newTestRouter(gw, nil)

	if rec := doJSON(t, router, http.MethodPost, "/api/redeem/mark", "{broken"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/api/redeem/mark", RedeemRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing code: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/api/redeem/mark", RedeemRequest{Code: "   "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank code: expected 400, got %d", rec.Code)
	}
}

func TestCreateCoupon(t *testing.T) {
	var got domain.NewCoupon
	gw := &mockGateway{createFn: func(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
		got = in
		return &domain.Coupon{Code: in.Code, MaxRedemptions: in.MaxRedemptions, Status: domain.StatusActive}, nil
	}}
	router := newTestRouter(gw, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/coupons", map[string]interface{}{
		"code":            "LUNCH50",
		"max_redemptions": 5,
		"validity_value":  6,
		"validity_unit":   "hours",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Code != "LUNCH50" || got.ValidityValue != 6 || got.ValidityUnit != "hours" || got.MaxRedemptions != 5 {
		t.Fatalf("unexpected input %+v", got)
	}

	var resp CouponResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Remaining != 5 || resp.Status != domain.StatusActive {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/coupons", map[string]interface{}{
		"code":          "BAD",
		"validity_unit": "weeks",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown unit, got %d", rec.Code)
	}
}

func TestCreateCoupon_RejectsValuesWiderThanColumns(t *testing.T) {
	called := false
	gw := &mockGateway{createFn: func(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
		called = true
		return &domain.Coupon{Code: in.Code}, nil
	}}
	router := newTestRouter(gw, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"description", map[string]interface{}{"code": "W", "description": strings.Repeat("d", 256)}},
		{"issued_to", map[string]interface{}{"code": "W", "issued_to": strings.Repeat("i", 121)}},
		{"tags", map[string]interface{}{"code": "W", "tags": strings.Repeat("t", 256)}},
		{"max_redemptions above int32", map[string]interface{}{"code": "W", "max_redemptions": int64(math.MaxInt32) + 1}},
		{"max_redemptions wrapping to one", map[string]interface{}{"code": "W", "max_redemptions": int64(1)<<32 + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/coupons", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if rec.Header().Get("Retry-After") != "" {
				t.Fatal("bad input must not be retryable")
			}
		})
	}
	if called {
		t.Fatal("gateway must not be called for oversized input")
	}

	rec := doJSON(t, router, http.MethodPost, "/api/coupons", map[string]interface{}{
		"code":        "FIT",
		"description": strings.Repeat("d", 255),
		"issued_to":   strings.Repeat("i", 120),
		"tags":        strings.Repeat("t", 255),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 at the column widths, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMarkRedeemed_IdempotencyKey(t *testing.T) {
	var gotKey string
	gw := &mockGateway{markFn: func(ctx context.Context, code string) (domain.MarkResult, error) {
		gotKey = usecase.RequestIDFrom(ctx)
		return domain.MarkResult{Code: code, Outcome: domain.OutcomeSuccess, NewCount: 2, Replayed: true}, nil
	}}
	router := newTestRouter(gw, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/redeem/mark", strings.NewReader(`{"code":"SAVE10"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyKeyHeader, " order-42 ")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotKey != "order-42" {
		t.Fatalf("expected key order-42, got %q", gotKey)
	}
	resp := decodeRedeem(t, rec)
	if !resp.Replayed || resp.RedeemedCount == nil || *resp.RedeemedCount != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/redeem/mark", RedeemRequest{Code: "SAVE10"})
	if rec.Code != http.StatusOK || gotKey != "" {
		t.Fatalf("expected no key without the header, got %q", gotKey)
	}
}

func TestCreateCoupon_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrDuplicateCoupon, http.StatusConflict},
		{fmt.Errorf("%w: expires_at must be after valid_from", domain.ErrInvalidCoupon), http.StatusBadRequest},
		{fmt.Errorf("%w: ERROR: value too long (SQLSTATE 22001)", domain.ErrInvalidCoupon), http.StatusBadRequest},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		gw := &mockGateway{createFn: func(ctx context.Context, in domain.NewCoupon) (*domain.Coupon, error) {
			return nil, tt.err
		}}
		rec := doJSON(t, newTestRouter(gw, nil), http.MethodPost, "/api/coupons", CreateCouponRequest{Code: "X", MaxRedemptions: 1})
		if rec.Code != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}
}

func TestGetCoupon(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	gw := &mockGateway{getFn: func(ctx context.Context, code string) (*domain.Coupon, error) {
		if code != "SAVE10" {
			return nil, domain.ErrNotFound
		}
		return &domain.Coupon{Code: code, MaxRedemptions: 3, RedeemedCount: 1, Status: domain.StatusActive, ExpiresAt: &past}, nil
	}}
	router := newTestRouter(gw, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/coupons/SAVE10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp CouponResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != domain.StatusExpired || resp.Remaining != 2 {
		t.Fatalf("expected effective status expired with 2 remaining, got %+v", resp)
	}

	if rec := doJSON(t, router, http.MethodGet, "/api/coupons/GHOST", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDisableCoupon(t *testing.T) {
	gw := &mockGateway{disableFn: func(ctx context.Context, code string) (*domain.Coupon, error) {
		return &domain.Coupon{Code: code, MaxRedemptions: 1, Status: domain.StatusDisabled}, nil
	}}
	rec := doJSON(t, newTestRouter(gw, nil), http.MethodPost, "/api/coupons/OFF/disable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp CouponResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "OFF" || resp.Status != domain.StatusDisabled {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListAuditLogs(t *testing.T) {
	var gotCode string
	var gotLimit int
	audit := &mockAuditReader{listFn: func(ctx context.Context, code string, limit int) ([]domain.AuditEntry, error) {
		gotCode, gotLimit = code, limit
		return nil, nil
	}}
	router := newTestRouter(&mockGateway{}, audit)

	rec := doJSON(t, router, http.MethodGet, "/api/audit-logs?code=SAVE10&limit=20", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotCode != "SAVE10" || gotLimit != 20 {
		t.Fatalf("unexpected filter %q/%d", gotCode, gotLimit)
	}
	if body := rec.Body.String(); !bytes.Contains([]byte(body), []byte(`"entries":[]`)) {
		t.Fatalf("expected empty entries array, got %s", body)
	}

	if rec := doJSON(t, router, http.MethodGet, "/api/audit-logs?limit=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
