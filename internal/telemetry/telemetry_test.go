package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/Aidin1998/stablecoin/internal/config"
)

func TestSetupExportsSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		ServiceName:     "stablecoin-test",
		Tracing:         ExporterStdout,
		Metrics:         "none",
		MetricsInterval: time.Minute,
	}, &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "deposit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "deposit")
	assert.Contains(t, out.String(), "stablecoin-test")
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		ServiceName:     "stablecoin-test",
		Tracing:         "none",
		Metrics:         "none",
		MetricsInterval: time.Minute,
	}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
