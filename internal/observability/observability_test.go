package observability

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/michaelbrown/pylearn/internal/executor"
)

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Vecs only appear in Gather after first use.
	m.ExecutionsTotal.WithLabelValues("ok").Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/scripts", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("GET", "/api/scripts").Observe(0.1)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"pylearn_executions_total",
		"pylearn_execution_duration_seconds",
		"pylearn_active_executions",
		"pylearn_http_requests_total",
		"pylearn_http_request_duration_seconds",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_Observer(t *testing.T) {
	m := NewMetricsCollector()

	m.ExecutionStarted()
	m.ExecutionStarted()
	if got := gaugeValue(t, m.Registry, "pylearn_active_executions"); got != 2 {
		t.Errorf("active = %v, want 2", got)
	}

	m.ExecutionFinished(executor.OutcomeOK, 100*time.Millisecond)
	m.ExecutionFinished(executor.OutcomeTimeout, 5*time.Second)
	m.ExecutionRejected()

	if got := gaugeValue(t, m.Registry, "pylearn_active_executions"); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
	for status, want := range map[string]float64{"ok": 1, "timeout": 1, "rejected": 1} {
		got := counterValue(t, m.Registry, "pylearn_executions_total", prometheus.Labels{"status": status})
		if got != want {
			t.Errorf("executions{status=%q} = %v, want %v", status, got, want)
		}
	}
}

func TestHTTPMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(metrics, logger))
	r.Get("/api/scripts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/scripts/1", "/api/scripts/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	}

	val := counterValue(t, metrics.Registry, "pylearn_http_requests_total",
		prometheus.Labels{"method": "GET", "route": "/api/scripts/{id}", "status": "404"})
	if val != 2 {
		t.Errorf("http requests = %v, want 2", val)
	}
	if !strings.Contains(buf.String(), "path=/api/scripts/2") {
		t.Errorf("expected request log line, got %s", buf.String())
	}
}

func TestHTTPMiddleware_Unmatched(t *testing.T) {
	metrics := NewMetricsCollector()

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(metrics, nil))
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	val := counterValue(t, metrics.Registry, "pylearn_http_requests_total",
		prometheus.Labels{"method": "GET", "route": unmatchedRoute, "status": "404"})
	if val != 1 {
		t.Errorf("unmatched requests = %v, want 1", val)
	}
}

func TestHTTPMiddleware_NilMetrics(t *testing.T) {
	// Should not panic with nil metrics and logger.
	handler := HTTPMiddleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Helpers ---

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	if m := findMetric(t, reg, name, labels); m != nil {
		return m.GetCounter().GetValue()
	}
	return 0
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	if m := findMetric(t, reg, name, nil); m != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}
