package adaptor

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/dto/request"
	"agro-booking/internal/dto/response"
	"agro-booking/internal/gateway"
	"agro-booking/internal/usecase"
	"agro-booking/pkg/queue"
	"agro-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ==================== STUB SERVICES ====================

type stubBookingService struct {
	usecase.BookingService
	create func(req *request.CreateBookingRequest) (*response.BookingResponse, error)
	cancel func(id string, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	modify func(id string, req *request.ModifyBookingRequest) (*response.BookingResponse, error)
}

func (s *stubBookingService) CreateBooking(_ context.Context, _ entity.Caller, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	return s.create(req)
}

func (s *stubBookingService) CancelBooking(_ context.Context, _ entity.Caller, id string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	return s.cancel(id, req)
}

func (s *stubBookingService) ModifyBooking(_ context.Context, _ entity.Caller, id string, req *request.ModifyBookingRequest) (*response.BookingResponse, error) {
	return s.modify(id, req)
}

type stubWebhookService struct {
	handle func(payload []byte, signature string) (usecase.WebhookOutcome, error)
}

func (s *stubWebhookService) HandleWebhook(_ context.Context, payload []byte, signature string) (usecase.WebhookOutcome, error) {
	return s.handle(payload, signature)
}

func (s *stubWebhookService) Reconcile(context.Context, *gateway.PaymentEvent) (usecase.WebhookOutcome, error) {
	return "", errors.New("not used")
}

func (s *stubWebhookService) ProcessTask(context.Context, *queue.Task) error {
	return errors.New("not used")
}

type stubQuoteService struct {
	quote func(activityID string, req *request.QuoteRequest) (*response.QuoteResponse, error)
}

func (s *stubQuoteService) Quote(_ context.Context, activityID string, req *request.QuoteRequest) (*response.QuoteResponse, error) {
	return s.quote(activityID, req)
}

// ==================== HELPERS ====================

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func withCaller(r *http.Request) *http.Request {
	caller := entity.NewCaller(uuid.New(), "ana@example.com", entity.RoleTourist)
	return r.WithContext(utils.SetCaller(r.Context(), caller))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// ==================== TESTS ====================

func TestHandleServiceError_MapsKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", usecase.ErrInvalidParticipants, http.StatusBadRequest},
		{"availability", usecase.ErrNotAvailable, http.StatusBadRequest},
		{"signature", usecase.ErrInvalidSignature, http.StatusBadRequest},
		{"not found", usecase.ErrBookingNotFound, http.StatusNotFound},
		{"access denied", usecase.ErrAccessDenied, http.StatusForbidden},
		{"conflict", usecase.ErrPaymentCommitted, http.StatusConflict},
		{"transient", usecase.ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, zap.NewNop(), tt.err, "test")
			assert.Equal(t, tt.want, rec.Code)

			body := decodeEnvelope(t, rec)
			assert.Equal(t, false, body["status"])
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestHandleServiceError_IncludesFieldDetail(t *testing.T) {
	err := &usecase.AppError{
		Kind:    usecase.KindAvailability,
		Code:    "not_available",
		Message: "Strawberry picking is not available on 2026-12-25",
		Fields:  map[string]string{"activities[1]": "blackout_date"},
	}

	rec := httptest.NewRecorder()
	handleServiceError(rec, zap.NewNop(), err, "create booking")

	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Strawberry picking is not available on 2026-12-25", body["message"])
	assert.Equal(t, map[string]any{"activities[1]": "blackout_date"}, body["errors"])
}

func TestCreateBooking_Handler(t *testing.T) {
	var called bool
	svc := &stubBookingService{create: func(req *request.CreateBookingRequest) (*response.BookingResponse, error) {
		called = true
		return &response.BookingResponse{ID: "b-1", Status: entity.BookingStatusPending}, nil
	}}
	h := NewBookingHandler(svc, zap.NewNop())

	valid := `{
		"farm_id": "6f1c1f0e-6a55-4c77-9a8e-1f0f5a4c2b11",
		"activities": [{"activity_id": "0b9c7a3e-2f4d-4d8e-9a61-3c1e5b7d9f20", "date": "2026-11-02", "participants": {"adults": 2}}],
		"contact_info": {"name": "Ana", "email": "ana@example.com", "phone": "+6281234567"}
	}`

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.CreateBooking(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(valid)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.CreateBooking(rec, withCaller(httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader("{"))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"farm_id": "x", "activities": [], "contact_info": {"name": "A"}}`
		h.CreateBooking(rec, withCaller(httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(body))))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		errs := decodeEnvelope(t, rec)["errors"].(map[string]any)
		assert.Contains(t, errs, "FarmID")
		assert.Contains(t, errs, "ContactInfo.Email")
		assert.False(t, called)
	})

	t.Run("created", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.CreateBooking(rec, withCaller(httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(valid))))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, called)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "pending", data["status"])
	})
}

func TestCancelBooking_OptionalBody(t *testing.T) {
	var gotReason, gotID string
	svc := &stubBookingService{cancel: func(id string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
		gotID, gotReason = id, req.Reason
		if id == "paid" {
			return nil, usecase.ErrPaymentCommitted
		}
		return &response.BookingResponse{ID: id, Status: entity.BookingStatusCancelled}, nil
	}}
	h := NewBookingHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	req := withURLParam(withCaller(httptest.NewRequest(http.MethodPut, "/api/bookings/b-1/cancel", nil)), "id", "b-1")
	h.CancelBooking(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b-1", gotID)
	assert.Empty(t, gotReason)

	rec = httptest.NewRecorder()
	req = withURLParam(withCaller(httptest.NewRequest(http.MethodPut, "/api/bookings/b-2/cancel", strings.NewReader(`{"reason":"Rain"}`))), "id", "b-2")
	h.CancelBooking(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rain", gotReason)

	rec = httptest.NewRecorder()
	req = withURLParam(withCaller(httptest.NewRequest(http.MethodPut, "/api/bookings/paid/cancel", nil)), "id", "paid")
	h.CancelBooking(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestModifyBooking_EmptyBody(t *testing.T) {
	h := NewBookingHandler(&stubBookingService{}, zap.NewNop())

	rec := httptest.NewRecorder()
	req := withURLParam(withCaller(httptest.NewRequest(http.MethodPut, "/api/bookings/b-1", strings.NewReader(`{}`))), "id", "b-1")
	h.ModifyBooking(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nothing to update", decodeEnvelope(t, rec)["message"])
}

func TestWebhookHandler(t *testing.T) {
	var gotPayload, gotSignature string
	svc := &stubWebhookService{handle: func(payload []byte, signature string) (usecase.WebhookOutcome, error) {
		gotPayload, gotSignature = string(payload), signature
		if signature == "forged" {
			return "", usecase.ErrInvalidSignature
		}
		return usecase.OutcomeDeferred, nil
	}}
	h := NewWebhookHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set(gateway.SignatureHeader, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"id":"evt_1"}`, gotPayload)
	assert.Equal(t, "t=1,v1=abc", gotSignature)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["received"])

	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{}`))
	req.Header.Set(gateway.SignatureHeader, "forged")
	rec = httptest.NewRecorder()
	h.HandlePayment(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_SignedMalformedEventIsAcknowledged(t *testing.T) {
	const secret = "whsec_test"
	gw := gateway.NewStripeGateway("sk_test", secret, zap.NewNop())
	svc := usecase.NewWebhookService(nil, nil, nil, nil, usecase.Deps{Gateway: gw, Now: time.Now},
		utils.PricingConfig{CommissionRate: 0.10, PayoutDelayDays: 7, Precision: 2}, zap.NewNop())
	h := NewWebhookHandler(svc, zap.NewNop())

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": "payment_intent.succeeded",
		"data": {"object": {"object": "payment_intent", "amount": 10000, "currency": "usd"}}
	}`)
	now := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", now, payload)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	req.Header.Set(gateway.SignatureHeader, fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil))))
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["received"])

	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	req.Header.Set(gateway.SignatureHeader, fmt.Sprintf("t=%d,v1=%s", now, strings.Repeat("0", 64)))
	rec = httptest.NewRecorder()
	h.HandlePayment(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_RejectsOversizedBody(t *testing.T) {
	called := false
	svc := &stubWebhookService{handle: func([]byte, string) (usecase.WebhookOutcome, error) {
		called = true
		return usecase.OutcomeProcessed, nil
	}}
	h := NewWebhookHandler(svc, zap.NewNop())

	body := strings.Repeat("x", maxWebhookBody+1)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set(gateway.SignatureHeader, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)

	// exactly at the limit is passed through untouched
	var got int
	svc.handle = func(payload []byte, _ string) (usecase.WebhookOutcome, error) {
		got = len(payload)
		return usecase.OutcomeProcessed, nil
	}
	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body[:maxWebhookBody]))
	rec = httptest.NewRecorder()
	h.HandlePayment(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxWebhookBody, got)
}

func TestGetQuote_ParsesQuery(t *testing.T) {
	var got *request.QuoteRequest
	svc := &stubQuoteService{quote: func(activityID string, req *request.QuoteRequest) (*response.QuoteResponse, error) {
		got = req
		return &response.QuoteResponse{ActivityID: activityID}, nil
	}}
	h := NewActivityHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/activities/a-1/quote?adults=2&children=1&date=2026-11-02&currency=idr", nil), "id", "a-1")
	h.GetQuote(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, got.Adults)
	assert.Equal(t, 1, got.Children)
	assert.Equal(t, "IDR", got.Currency)
	assert.Equal(t, "2026-11-02", got.Date)

	rec = httptest.NewRecorder()
	req = withURLParam(httptest.NewRequest(http.MethodGet, "/api/activities/a-1/quote?adults=-3", nil), "id", "a-1")
	h.GetQuote(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
