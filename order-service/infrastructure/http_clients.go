package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/domain"
)

// serviceClient posts CallRequests to one downstream service. A 2xx response
// carries a CallResult body whose failed flag reports business rejection;
// anything else is an infrastructure failure and is returned as an error so
// the retry wrapper can take another attempt.
type serviceClient struct {
	httpClient *http.Client
	baseURL    string
}

func (c *serviceClient) post(ctx context.Context, path string, req domain.CallRequest) (domain.CallResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.CallResult{}, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.CallResult{}, errors.Wrap(err, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", req.RequestID)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.CallResult{}, errors.Wrapf(err, "call to %s failed", path)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return domain.CallResult{}, errors.Errorf("call to %s returned status %d: %s", path, res.StatusCode, payload)
	}

	var result domain.CallResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return domain.CallResult{}, errors.Wrapf(err, "failed to decode %s response", path)
	}
	return result, nil
}

// HTTPInventoryClient implements domain.InventoryClient over HTTP
type HTTPInventoryClient struct {
	serviceClient
}

// NewHTTPInventoryClient creates a new HTTPInventoryClient
func NewHTTPInventoryClient(httpClient *http.Client, baseURL string) *HTTPInventoryClient {
	return &HTTPInventoryClient{serviceClient{httpClient: httpClient, baseURL: baseURL}}
}

func (c *HTTPInventoryClient) Reserve(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return c.post(ctx, "/reserve", req)
}

func (c *HTTPInventoryClient) Unreserve(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return c.post(ctx, "/unreserve", req)
}

// HTTPPaymentClient implements domain.PaymentClient over HTTP
type HTTPPaymentClient struct {
	serviceClient
}

// NewHTTPPaymentClient creates a new HTTPPaymentClient
func NewHTTPPaymentClient(httpClient *http.Client, baseURL string) *HTTPPaymentClient {
	return &HTTPPaymentClient{serviceClient{httpClient: httpClient, baseURL: baseURL}}
}

func (c *HTTPPaymentClient) Charge(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return c.post(ctx, "/charge", req)
}

func (c *HTTPPaymentClient) Refund(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return c.post(ctx, "/refund", req)
}

// HTTPFulfillmentClient implements domain.FulfillmentClient over HTTP
type HTTPFulfillmentClient struct {
	serviceClient
}

// NewHTTPFulfillmentClient creates a new HTTPFulfillmentClient
func NewHTTPFulfillmentClient(httpClient *http.Client, baseURL string) *HTTPFulfillmentClient {
	return &HTTPFulfillmentClient{serviceClient{httpClient: httpClient, baseURL: baseURL}}
}

func (c *HTTPFulfillmentClient) Ship(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	return c.post(ctx, "/ship", req)
}
