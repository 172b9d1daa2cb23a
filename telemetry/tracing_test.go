package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracer_InstallsPropagators(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "load-generator", "")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	member, err := baggage.NewMember("synthetic_request", "true")
	require.NoError(t, err)
	bag, err := baggage.New(member)
	require.NoError(t, err)

	ctx, span := otel.Tracer("test").Start(baggage.ContextWithBaggage(context.Background(), bag), "span")
	defer span.End()

	h := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))

	assert.NotEmpty(t, h.Get("traceparent"))
	assert.Equal(t, "synthetic_request=true", h.Get("baggage"))
}
