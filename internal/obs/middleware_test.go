package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-promo/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("promo", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.Positive(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsSkipAndUnmatched(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("promo", nil, registry)
	again := obs.NewHTTPMetrics("promo", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics, Skip: obs.SkipPaths("/metrics")}.Middleware)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/api/v1/carts/{id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/carts/c1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	require.Zero(t, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/metrics", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/carts/{id}", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestCartIDOnlyOnCartRoutes(t *testing.T) {
	r := chi.NewRouter()
	var got []string
	r.Get("/api/v1/carts/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = append(got, obs.CartID(r, obs.RouteLabel(r, "")))
	})
	r.Get("/api/v1/promotions/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = append(got, obs.CartID(r, obs.RouteLabel(r, "")))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/carts/c9", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/promotions/p1", nil))
	require.Equal(t, []string{"c9", ""}, got)
}

func TestRequestLoggerTagsCartRoutes(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.RequestLogger{Logger: zerolog.New(&buf)}

	r := chi.NewRouter()
	r.Use(obs.RoutePatternMiddleware)
	r.Use(logger.Middleware)
	r.Get("/api/v1/carts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/carts/cart-42", nil)
	req.Header.Set("Idempotency-Key", "abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "cart-42", entry["cart_id"])
	require.Equal(t, "/api/v1/carts/{id}", entry["route"])
	require.Equal(t, true, entry["idempotent"])
	require.EqualValues(t, http.StatusOK, entry["status"])
}

func TestNoneExporterIsNoop(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
