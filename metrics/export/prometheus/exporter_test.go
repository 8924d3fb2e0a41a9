package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	crossAuth "github.com/MrEthical07/crossAuth"
)

type fakeSource struct {
	snapshot crossAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() crossAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: crossAuth.MetricsSnapshot{
			Counters:   map[crossAuth.MetricID]uint64{},
			Histograms: map[crossAuth.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: crossAuth.MetricsSnapshot{
			Counters: map[crossAuth.MetricID]uint64{
				crossAuth.MetricLoginSuccess:     7,
				crossAuth.MetricSSOTokenIssued:   3,
				crossAuth.MetricSSOTokenReplayed: 1,
			},
			Histograms: map[crossAuth.MetricID][]uint64{
				crossAuth.MetricResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "crossauth_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "crossauth_sso_token_issued_total 3") {
		t.Fatalf("expected sso_token_issued counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "crossauth_resolve_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "crossauth_resolve_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "crossauth_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: crossAuth.MetricsSnapshot{
			Counters:   map[crossAuth.MetricID]uint64{crossAuth.MetricLoginSuccess: 1},
			Histograms: map[crossAuth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
