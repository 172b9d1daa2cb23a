// Package flags evaluates feature flags over the OpenFeature Remote
// Evaluation Protocol (OFREP) exposed by flagd.
package flags

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FloodHomepage is the flag holding the number of extra index fetches per
// flood task.
const FloodHomepage = "loadGeneratorFloodHomepage"

// FallbackReason explains why an evaluation degraded to the default.
type FallbackReason string

const (
	FallbackNone         FallbackReason = ""
	FallbackUnreachable  FallbackReason = "unreachable"
	FallbackFlagNotFound FallbackReason = "flag_not_found"
	FallbackTypeMismatch FallbackReason = "type_mismatch"
	FallbackBackendError FallbackReason = "backend_error"
)

// DefaultInt is the value every failed integer evaluation resolves to.
const DefaultInt = 0

// IntResult is the outcome of one integer evaluation. Value is DefaultInt
// whenever Fallback is not FallbackNone; Err then carries the cause.
type IntResult struct {
	Key      string
	Value    int
	Variant  string
	Reason   string
	Fallback FallbackReason
	Err      error
}

// Ok reports whether the value came from the flag backend.
func (r IntResult) Ok() bool { return r.Fallback == FallbackNone }

type evaluationRequest struct {
	Context map[string]interface{} `json:"context"`
}

type evaluationResponse struct {
	Key          string          `json:"key"`
	Value        json.RawMessage `json:"value"`
	Reason       string          `json:"reason"`
	Variant      string          `json:"variant"`
	ErrorCode    string          `json:"errorCode"`
	ErrorDetails string          `json:"errorDetails"`
}

// Client is stateless apart from its HTTP client and is shared by every
// simulated user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// Int returns the flag value, or DefaultInt when it cannot be evaluated.
func (c *Client) Int(ctx context.Context, key string) int {
	return c.EvaluateInt(ctx, key).Value
}

// EvaluateInt queries the backend for key. It never returns an error to the
// caller; failures are reported through the result's Fallback and Err.
func (c *Client) EvaluateInt(ctx context.Context, key string) IntResult {
	ctx, span := otel.Tracer("flags").Start(ctx, "feature_flag.evaluate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	res := c.evaluateInt(ctx, key)
	span.SetAttributes(
		attribute.String("feature_flag.key", key),
		attribute.String("feature_flag.variant", res.Variant),
		attribute.Int("feature_flag.value", res.Value),
	)
	if !res.Ok() {
		span.SetAttributes(attribute.String("feature_flag.fallback", string(res.Fallback)))
		c.log.Debug("Flag evaluation fell back to default",
			zap.String("flag", key),
			zap.String("fallback", string(res.Fallback)),
			zap.Error(res.Err),
		)
	}
	return res
}

func (c *Client) evaluateInt(ctx context.Context, key string) IntResult {
	fallback := func(reason FallbackReason, err error) IntResult {
		return IntResult{Key: key, Value: DefaultInt, Fallback: reason, Err: err}
	}

	body, err := json.Marshal(evaluationRequest{Context: map[string]interface{}{}})
	if err != nil {
		return fallback(FallbackBackendError, err)
	}
	endpoint := c.baseURL + "/ofrep/v1/evaluate/flags/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fallback(FallbackBackendError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fallback(FallbackUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fallback(FallbackUnreachable, fmt.Errorf("read response: %w", err))
	}

	var out evaluationResponse
	decodeErr := json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusNotFound || out.ErrorCode == "FLAG_NOT_FOUND":
		return fallback(FallbackFlagNotFound, fmt.Errorf("flag %q not found: %s", key, out.ErrorDetails))
	case out.ErrorCode == "TYPE_MISMATCH":
		return fallback(FallbackTypeMismatch, fmt.Errorf("flag %q: %s", key, out.ErrorDetails))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fallback(FallbackBackendError, fmt.Errorf("ofrep status %d: %s", resp.StatusCode, string(raw)))
	case decodeErr != nil:
		return fallback(FallbackBackendError, fmt.Errorf("decode response: %w", decodeErr))
	case out.ErrorCode != "":
		return fallback(FallbackBackendError, fmt.Errorf("flag %q: %s: %s", key, out.ErrorCode, out.ErrorDetails))
	}

	value, err := integerValue(out.Value)
	if err != nil {
		return fallback(FallbackTypeMismatch, fmt.Errorf("flag %q: %w", key, err))
	}
	return IntResult{
		Key:     key,
		Value:   value,
		Variant: out.Variant,
		Reason:  out.Reason,
	}
}

// integerValue accepts JSON numbers with no fractional part.
func integerValue(raw json.RawMessage) (int, error) {
	var v interface{}
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("value %s is not a number", string(raw))
	}
	if i, err := n.Int64(); err == nil {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return 0, fmt.Errorf("value %s out of range", n)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("value %s is not an integer", n)
	}
	return int(f), nil
}
