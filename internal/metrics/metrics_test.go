package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://lib.example.go.kr/path", "lib.example.go.kr"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if siteRunsTotal == nil || coursesExtracted == nil || upsertsTotal == nil || aiRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(siteRunsTotal.WithLabelValues("init.test", "ok"))
	ObserveSiteRun("https://init.test/list", "ok", time.Second)
	if val := testutil.ToFloat64(siteRunsTotal.WithLabelValues("init.test", "ok")); val != before+1 {
		t.Errorf("expected site runs to increase by 1, got %f", val-before)
	}
}

func TestObserveHelpers(t *testing.T) {
	ObserveExtracted("https://observe.test", "text", 3)
	ObserveExtracted("https://observe.test", "text", 0)
	if val := testutil.ToFloat64(coursesExtracted.WithLabelValues("observe.test", "text")); val != 3 {
		t.Errorf("expected 3 extracted courses, got %f", val)
	}

	before := testutil.ToFloat64(upsertsTotal.WithLabelValues("observe_written"))
	ObserveUpsert("observe_written", 5)
	if val := testutil.ToFloat64(upsertsTotal.WithLabelValues("observe_written")); val != before+5 {
		t.Errorf("expected upserts to increase by 5, got %f", val-before)
	}

	ObserveAIRequest("observe", "ok", 2*time.Second)
	if val := testutil.ToFloat64(aiRequestsTotal.WithLabelValues("observe", "ok")); val != 1 {
		t.Errorf("expected 1 ai request, got %f", val)
	}

	ObserveGovPage("observe")
	if val := testutil.ToFloat64(govPagesTotal.WithLabelValues("observe")); val != 1 {
		t.Errorf("expected 1 gov page, got %f", val)
	}
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	ObserveUpsertRetry()
	ts := httptest.NewServer(NewRouter(func() any { return map[string]int{"sites": 2} }))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, map[string]any{"sites": float64(2)}, body["run"])

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close() //nolint:errcheck // test cleanup
	exposition, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	require.Contains(t, string(exposition), "ingest_upsert_retries_total")
	require.Contains(t, string(exposition), `ingest_http_request_duration_seconds_count{method="GET",route="/healthz"}`)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", NewRouter(nil), zap.NewNop())
	}()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestPushRequiresURL(t *testing.T) {
	require.Error(t, Push(context.Background(), "", "job"))
}

func TestPushToGateway(t *testing.T) {
	var gotPath string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	MarkRunCompleted(time.Unix(1700000000, 0))
	require.NoError(t, Push(context.Background(), gw.URL, "course-ingest"))
	require.Equal(t, "/metrics/job/course-ingest", gotPath)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
