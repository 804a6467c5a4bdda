package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/storefront/order-system/order-service/application"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/order-service/infrastructure"
	"github.com/storefront/order-system/shared/events"
	"github.com/storefront/order-system/shared/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServices answers every downstream call with success, except the one
// operation configured to be rejected.
type stubServices struct {
	rejectOp string
}

func (s *stubServices) outcome(op string) (domain.CallResult, error) {
	if op == s.rejectOp {
		return domain.CallResult{Failed: true, Reason: "rejected"}, nil
	}
	return domain.CallResult{}, nil
}

func (s *stubServices) Reserve(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return s.outcome("reserve")
}

func (s *stubServices) Unreserve(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return s.outcome("unreserve")
}

func (s *stubServices) Charge(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return s.outcome("charge")
}

func (s *stubServices) Refund(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return s.outcome("refund")
}

func (s *stubServices) Ship(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return s.outcome("ship")
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, evts ...*events.Event) error { return nil }

type handlerFixture struct {
	router chi.Router
	repo   domain.OrderRepository
}

func newHandlerFixture(rejectOp string) *handlerFixture {
	repo := infrastructure.NewMemoryOrderRepository()
	policy := retry.Policy{MaxAttempts: 1, PerAttemptTimeout: 100 * time.Millisecond, InitialBackoff: time.Millisecond}
	services := &stubServices{rejectOp: rejectOp}
	saga := application.NewOrderSaga(repo, services, services, services, nopPublisher{}, policy)

	h := NewOrderHandlers(
		application.NewSubmitOrder(repo, saga),
		application.NewGetOrder(repo),
	)
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return &handlerFixture{router: router, repo: repo}
}

func (f *handlerFixture) submit(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func orderBody(requestID string) string {
	return fmt.Sprintf(
		`{"item_id":"sku-1","quantity":1,"address_id":"addr-1","user_id":"u1","request_id":%q}`,
		requestID,
	)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitOrder_Fulfilled(t *testing.T) {
	f := newHandlerFixture("")

	rec := f.submit(t, orderBody("req-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FULFILLED", body["state"])
	assert.Equal(t, "Order submitted!", body["message"])
	assert.NotEmpty(t, body["order_id"])
}

func TestSubmitOrder_RejectedWithReason(t *testing.T) {
	f := newHandlerFixture("charge")

	rec := f.submit(t, orderBody("req-1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FAILED_TO_CHARGE_UNRESERVED", body["state"])
	assert.Equal(t, domain.ReasonPaymentFailed, body["reason"])
}

func TestSubmitOrder_MalformedBody(t *testing.T) {
	f := newHandlerFixture("")

	rec := f.submit(t, `{"item_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitOrder_MissingFields(t *testing.T) {
	f := newHandlerFixture("")

	rec := f.submit(t, `{"item_id":"sku-1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid command")
}

func TestSubmitOrder_DuplicateInFlight(t *testing.T) {
	f := newHandlerFixture("")

	// An order parked in a non-terminal state, as if another process were
	// still driving its saga.
	order, err := domain.NewOrder("sku-1", 1, "addr-1", "u1", "req-1")
	require.NoError(t, err)
	_, _, err = f.repo.CreateIfAbsent(context.Background(), order)
	require.NoError(t, err)

	rec := f.submit(t, orderBody("req-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order already submitted")
}

func TestSubmitOrder_DuplicateAfterCompletion(t *testing.T) {
	f := newHandlerFixture("")

	first := f.submit(t, orderBody("req-1"))
	require.Equal(t, http.StatusOK, first.Code)

	second := f.submit(t, orderBody("req-1"))

	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, decodeBody(t, first)["order_id"], decodeBody(t, second)["order_id"])
}

func TestGetOrder(t *testing.T) {
	f := newHandlerFixture("")
	rec := f.submit(t, orderBody("req-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decodeBody(t, rec)["order_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID, nil)
	getRec := httptest.NewRecorder()
	f.router.ServeHTTP(getRec, req)

	require.Equal(t, http.StatusOK, getRec.Code)
	body := decodeBody(t, getRec)
	assert.Equal(t, orderID, body["id"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "FULFILLED", body["state"])
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newHandlerFixture("")

	req := httptest.NewRequest(http.MethodGet, "/orders/req-unknown", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
