package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveClaim(ResultSuccess)
	m.ObserveClaim(ResultConflict)
	m.ObserveClaim(ResultConflict)
	m.ObserveRelease("CLEANING")
	m.ObserveTransfer(ResultSuccess)

	if got := testutil.ToFloat64(m.claims.WithLabelValues(ResultConflict)); got != 2 {
		t.Errorf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.claims.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.releases.WithLabelValues("CLEANING")); got != 1 {
		t.Errorf("expected 1 release, got %v", got)
	}
	if got := testutil.ToFloat64(m.transfers.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("expected 1 transfer, got %v", got)
	}
}

func TestMetrics_Observe(t *testing.T) {
	m := New()
	m.Observe(context.Background(), "admit", true, 10*time.Millisecond)
	m.Observe(context.Background(), "admit", false, 5*time.Millisecond)
	m.Observe(context.Background(), "", true, time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("admit", ResultSuccess)); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("admit", ResultError)); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(m.operations); n != 2 {
		t.Errorf("expected 2 series, got %d", n)
	}
}

func TestMetrics_WardOccupancy(t *testing.T) {
	m := New()
	m.SetWardOccupancy("W-1", 66.67)
	if got := testutil.ToFloat64(m.occupancy.WithLabelValues("W-1")); got < 0.6666 || got > 0.6668 {
		t.Errorf("expected ratio ~0.6667, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveClaim(ResultSuccess)
	m.ObserveRelease("AVAILABLE")
	m.ObserveTransfer(ResultError)
	m.Observe(context.Background(), "discharge", true, time.Second)
	m.SetWardOccupancy("W-1", 10)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveClaim(ResultSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `inpatient_bed_claims_total{result="success"} 1`) {
		t.Errorf("expected claim counter in exposition, got:\n%s", rec.Body.String())
	}
}
