package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesGradingCollectors(t *testing.T) {
	Evaluations().WithLabelValues("simple", "stateless").Inc()
	TranscriptExports().WithLabelValues("pdf", "success").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "grading_evaluations_total")
	require.Contains(t, string(body), "transcript_exports_total")
}

func gaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, gauge.Write(&metric))
	return metric.GetGauge().GetValue()
}

func TestEvaluationSocketsGauge(t *testing.T) {
	before := gaugeValue(t, EvaluationSockets())
	EvaluationSockets().Inc()
	require.Equal(t, before+1, gaugeValue(t, EvaluationSockets()))
	EvaluationSockets().Dec()
	require.Equal(t, before, gaugeValue(t, EvaluationSockets()))
}
