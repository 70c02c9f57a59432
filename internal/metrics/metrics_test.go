package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentRecordsRequests(t *testing.T) {
	m := New()
	handler := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for _, path := range []string{"/application/abc", "/application/def"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/application/:id", "201"))
	if got != 2 {
		t.Fatalf("expected 2 requests recorded, got %v", got)
	}
	if inflight := testutil.ToFloat64(m.httpInFlight); inflight != 0 {
		t.Fatalf("expected no in-flight requests, got %v", inflight)
	}
}

func TestInstrumentSkipsMetricsEndpoint(t *testing.T) {
	m := New()
	handler := m.Instrument(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if count := testutil.CollectAndCount(m.httpRequests); count != 0 {
		t.Fatalf("expected /metrics to be excluded, got %d series", count)
	}
}

func TestApplicationCounters(t *testing.T) {
	m := New()
	m.RecordUpsert(OutcomeCreated)
	m.RecordUpsert(OutcomeCreated)
	m.RecordUpsert(OutcomeNotFound)
	m.RecordLookup(true)
	m.RecordLookup(false)
	m.RecordLookup(false)
	m.SetRecords(2)

	if got := testutil.ToFloat64(m.upserts.WithLabelValues(OutcomeCreated)); got != 2 {
		t.Fatalf("expected 2 created upserts, got %v", got)
	}
	if got := testutil.ToFloat64(m.upserts.WithLabelValues(OutcomeNotFound)); got != 1 {
		t.Fatalf("expected 1 not_found upsert, got %v", got)
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("expected 2 lookup misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.records); got != 2 {
		t.Fatalf("expected records gauge 2, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetRecords(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "intake_applications_records 5") {
		t.Fatalf("expected records gauge in exposition, got:\n%s", rec.Body.String())
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordUpsert(OutcomeCreated)
	m.RecordLookup(true)
	m.SetRecords(1)

	called := false
	handler := m.Instrument(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if !called {
		t.Fatalf("expected passthrough handler to run")
	}
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestCanonicalPath(t *testing.T) {
	testCases := map[string]string{
		"/application":          "/application",
		"/application/":         "/application/:id",
		"/application/abc-123":  "/application/:id",
		"/health":               "/health",
		"/wp-admin/install.php": "other",
	}
	for input, want := range testCases {
		if got := canonicalPath(input); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", input, got, want)
		}
	}
}
