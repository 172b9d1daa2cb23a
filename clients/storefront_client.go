package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yashrajoria/E-Commerce-loadgen/models"
)

// Route names under which requests are recorded. Path parameters are
// folded so every product lookup lands on the same row.
const (
	RouteIndex           = "/"
	RouteProduct         = "/api/products/[id]"
	RouteRecommendations = "/api/recommendations"
	RouteAds             = "/api/data/"
	RouteCart            = "/api/cart"
	RouteCheckout        = "/api/checkout"
)

// Recorder receives the outcome of every request.
type Recorder interface {
	RecordRequest(method, name string, d time.Duration, size int64, err error)
}

// StorefrontClient issues the shopper requests against the target frontend.
type StorefrontClient struct {
	baseURL string
	client  *http.Client
	stats   Recorder
}

func NewStorefrontClient(baseURL string, timeout time.Duration, stats Recorder) *StorefrontClient {
	return NewStorefrontClientWithHTTP(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, stats)
}

func NewStorefrontClientWithHTTP(baseURL string, client *http.Client, stats Recorder) *StorefrontClient {
	return &StorefrontClient{
		baseURL: baseURL,
		client:  client,
		stats:   stats,
	}
}

// Do sends one request, drains the response and records it under name.
// body, when non-nil, is sent as JSON.
func (s *StorefrontClient) Do(ctx context.Context, method, path, name string, query url.Values, body interface{}) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", name, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	var size int64
	resp, err := s.client.Do(req)
	if err != nil {
		err = &RequestError{Method: method, Name: name, Err: err}
	} else {
		var copyErr error
		size, copyErr = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 400:
			err = &RequestError{Method: method, Name: name, StatusCode: resp.StatusCode}
		case copyErr != nil:
			// Truncated bodies and client timeouts while streaming count as failures.
			err = &RequestError{Method: method, Name: name, Err: copyErr}
		}
	}
	if err != nil && ctx.Err() != nil {
		// The user was stopped, not failed by the target.
		return err
	}
	s.stats.RecordRequest(method, name, time.Since(start), size, err)
	return err
}

func (s *StorefrontClient) Index(ctx context.Context) error {
	return s.Do(ctx, http.MethodGet, "/", RouteIndex, nil, nil)
}

func (s *StorefrontClient) Product(ctx context.Context, productID string) error {
	return s.Do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(productID), RouteProduct, nil, nil)
}

func (s *StorefrontClient) Recommendations(ctx context.Context, productIDs ...string) error {
	return s.Do(ctx, http.MethodGet, "/api/recommendations", RouteRecommendations, url.Values{"productIds": productIDs}, nil)
}

// Ads requests ad content. An empty category sends no contextKeys parameter.
func (s *StorefrontClient) Ads(ctx context.Context, category string) error {
	var q url.Values
	if category != "" {
		q = url.Values{"contextKeys": {category}}
	}
	return s.Do(ctx, http.MethodGet, "/api/data/", RouteAds, q, nil)
}

func (s *StorefrontClient) Cart(ctx context.Context) error {
	return s.Do(ctx, http.MethodGet, "/api/cart", RouteCart, nil, nil)
}

func (s *StorefrontClient) AddToCart(ctx context.Context, req models.AddToCartRequest) error {
	return s.Do(ctx, http.MethodPost, "/api/cart", RouteCart, nil, req)
}

func (s *StorefrontClient) Checkout(ctx context.Context, person models.Person) error {
	return s.Do(ctx, http.MethodPost, "/api/checkout", RouteCheckout, nil, person)
}
