package clients_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/E-Commerce-loadgen/clients"
	"github.com/yashrajoria/E-Commerce-loadgen/models"
)

// ---- helpers ----

type recorded struct {
	method string
	name   string
	size   int64
	err    error
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeRecorder) RecordRequest(method, name string, _ time.Duration, size int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recorded{method: method, name: name, size: size, err: err})
}

type capturedRequest struct {
	method string
	path   string
	query  string
	body   []byte
	ctype  string
}

func newStorefront(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   body,
			ctype:  r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

// ---- tests ----

func TestStorefrontClient_GetRoutes(t *testing.T) {
	srv, reqs := newStorefront(t, http.StatusOK)
	rec := &fakeRecorder{}
	c := clients.NewStorefrontClient(srv.URL, 5*time.Second, rec)
	ctx := context.Background()

	require.NoError(t, c.Index(ctx))
	require.NoError(t, c.Product(ctx, "OLJCESPC7Z"))
	require.NoError(t, c.Recommendations(ctx, "66VCHSJNUP"))
	require.NoError(t, c.Ads(ctx, "telescopes"))
	require.NoError(t, c.Ads(ctx, ""))
	require.NoError(t, c.Cart(ctx))

	require.Len(t, *reqs, 6)
	got := *reqs
	assert.Equal(t, "/", got[0].path)
	assert.Equal(t, "/api/products/OLJCESPC7Z", got[1].path)
	assert.Equal(t, "/api/recommendations", got[2].path)
	assert.Equal(t, "productIds=66VCHSJNUP", got[2].query)
	assert.Equal(t, "/api/data/", got[3].path)
	assert.Equal(t, "contextKeys=telescopes", got[3].query)
	assert.Equal(t, "", got[4].query)
	assert.Equal(t, "/api/cart", got[5].path)

	names := []string{}
	for _, r := range rec.seen {
		names = append(names, r.name)
		assert.NoError(t, r.err)
		assert.EqualValues(t, 2, r.size)
	}
	assert.Equal(t, []string{
		clients.RouteIndex, clients.RouteProduct, clients.RouteRecommendations,
		clients.RouteAds, clients.RouteAds, clients.RouteCart,
	}, names)
}

func TestStorefrontClient_PostBodies(t *testing.T) {
	srv, reqs := newStorefront(t, http.StatusOK)
	c := clients.NewStorefrontClient(srv.URL, 5*time.Second, &fakeRecorder{})
	ctx := context.Background()

	require.NoError(t, c.AddToCart(ctx, models.AddToCartRequest{
		Item:   models.CartItem{ProductID: "L9ECAV7KIM", Quantity: 3},
		UserID: "session-1",
	}))
	require.NoError(t, c.Checkout(ctx, models.Person{Email: "a@example.com", UserCurrency: "USD", UserID: "session-1"}))

	got := *reqs
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "application/json", got[0].ctype)
	assert.JSONEq(t, `{"item":{"productId":"L9ECAV7KIM","quantity":3},"userId":"session-1"}`, string(got[0].body))

	assert.Equal(t, "/api/checkout", got[1].path)
	var checkout map[string]interface{}
	require.NoError(t, json.Unmarshal(got[1].body, &checkout))
	assert.Equal(t, "session-1", checkout["userId"])
	assert.Equal(t, "a@example.com", checkout["email"])
}

func TestStorefrontClient_StatusFailure(t *testing.T) {
	srv, _ := newStorefront(t, http.StatusServiceUnavailable)
	rec := &fakeRecorder{}
	c := clients.NewStorefrontClient(srv.URL, 5*time.Second, rec)

	err := c.Cart(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, clients.StatusCode(err))
	assert.Equal(t, "GET /api/cart: unexpected status 503", err.Error())

	require.Len(t, rec.seen, 1)
	assert.Equal(t, err, rec.seen[0].err)
}

func TestStorefrontClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	rec := &fakeRecorder{}
	c := clients.NewStorefrontClient(addr, time.Second, rec)

	err := c.Index(context.Background())
	require.Error(t, err)
	var reqErr *clients.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 0, reqErr.StatusCode)
	assert.NotContains(t, err.Error(), addr)
	require.Len(t, rec.seen, 1)
	assert.Error(t, rec.seen[0].err)
}

func TestStorefrontClient_TruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 1000\r\nContent-Type: text/html\r\n\r\n")
		_, _ = buf.WriteString(strings.Repeat("x", 100))
		_ = buf.Flush()
	}))
	t.Cleanup(srv.Close)

	rec := &fakeRecorder{}
	c := clients.NewStorefrontClient(srv.URL, 5*time.Second, rec)

	err := c.Index(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "GET /: unexpected EOF", err.Error())
	require.Len(t, rec.seen, 1)
	assert.Equal(t, err, rec.seen[0].err)
	assert.Equal(t, int64(100), rec.seen[0].size)
}

func TestStorefrontClient_TimeoutWhileStreamingBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	rec := &fakeRecorder{}
	c := clients.NewStorefrontClient(srv.URL, 100*time.Millisecond, rec)

	err := c.Index(context.Background())

	require.Error(t, err)
	require.Len(t, rec.seen, 1)
	assert.Error(t, rec.seen[0].err)
}
