package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	cfg := DefaultConfig().Metrics
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func TestMetrics_RecordBuild(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBuild("user")
	m.RecordBuild("user")
	m.RecordBuild("post")

	if got := testutil.ToFloat64(m.builds.WithLabelValues("user")); got != 2 {
		t.Errorf("expected 2 user builds, got %v", got)
	}
	if got := testutil.ToFloat64(m.builds.WithLabelValues("post")); got != 1 {
		t.Errorf("expected 1 post build, got %v", got)
	}
}

func TestMetrics_RecordCreate(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCreate("user", "ok", 2*time.Millisecond)
	m.RecordCreate("user", "error", time.Millisecond)

	if got := testutil.ToFloat64(m.creates.WithLabelValues("user", "ok")); got != 1 {
		t.Errorf("expected 1 ok create, got %v", got)
	}
	if got := testutil.ToFloat64(m.creates.WithLabelValues("user", "error")); got != 1 {
		t.Errorf("expected 1 failed create, got %v", got)
	}
	if got := testutil.CollectAndCount(m.createDuration); got != 1 {
		t.Errorf("expected 1 duration series, got %d", got)
	}
}

func TestMetrics_ErrorsAndDefinitions(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordError("unknown_model")
	m.RecordError("")
	m.SetDefinitions(3)
	m.RecordLoad("starlark", true)

	if got := testutil.ToFloat64(m.errors.WithLabelValues("unknown_model")); got != 1 {
		t.Errorf("expected 1 unknown_model error, got %v", got)
	}
	if got := testutil.CollectAndCount(m.errors); got != 1 {
		t.Errorf("empty kind must not create a series, got %d series", got)
	}
	if got := testutil.ToFloat64(m.definitions); got != 3 {
		t.Errorf("expected 3 definitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.loads.WithLabelValues("starlark", "true")); got != 1 {
		t.Errorf("expected 1 load, got %v", got)
	}
}

func TestMetrics_NilAndDisabled(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.RecordBuild("user")
	nilMetrics.RecordCreate("user", "ok", time.Second)
	nilMetrics.RecordError("generator")
	nilMetrics.SetDefinitions(1)
	nilMetrics.RecordLoad("cue", false)
	if nilMetrics.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}

	disabled, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create disabled metrics: %v", err)
	}
	disabled.RecordBuild("user")
	if disabled.Registry() != nil {
		t.Error("disabled metrics should have no registry")
	}

	rec := httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 from disabled handler, got %d", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordBuild("user")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `factory_builds_total{factory="user"} 1`) {
		t.Errorf("builds series missing from output:\n%s", rec.Body.String())
	}
}
