package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/":                         "/",
		"/console/api/explore/apps": "/console/api/explore/apps",
		"/console/api/explore/apps/3f1c9a7e-8a51-4b33-9d0c-2f4d8c1b6e10": "/console/api/explore/apps/:id",
		"/a/b/c/d/e/f": "/a/b/c/d/e/*",
		"/a/b/c/d/e":   "/a/b/c/d/e",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Errorf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordDirectoryLookup(t *testing.T) {
	before := testutil.ToFloat64(directoryLookups.WithLabelValues("degraded"))
	RecordDirectoryLookup("degraded", 5*time.Millisecond)
	after := testutil.ToFloat64(directoryLookups.WithLabelValues("degraded"))
	if after != before+1 {
		t.Fatalf("degraded lookups = %v, want %v", after, before+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	HTTPRecorder{}.RecordHTTPRequest("get", "/healthz", "/healthz", "200", time.Millisecond)
	RecordRecommendedChange("publish", "created")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"marketplace_console_http_requests_total",
		"marketplace_console_recommended_apps_changes_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
