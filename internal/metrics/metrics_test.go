package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は指定名のメトリクスファミリーを返す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterface はCollectorがMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}

// TestRecordTierAttempt_LabelsAndLatency はティア試行がラベル付きで記録されることを検証する。
func TestRecordTierAttempt_LabelsAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTierAttempt("maradmin", "rss", "error", 120*time.Millisecond)
	c.RecordTierAttempt("maradmin", "scrape", "success", 300*time.Millisecond)
	c.RecordTierAttempt("maradmin", "scrape", "success", 200*time.Millisecond)

	mf := findMetricFamily(t, reg, "adminfeed_tier_attempts_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 series, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		tier := labelValue(m, "tier")
		want := map[string]float64{"rss": 1, "scrape": 2}[tier]
		if got := m.GetCounter().GetValue(); got != want {
			t.Errorf("tier %s: attempts = %v, want %v", tier, got, want)
		}
	}

	latency := findMetricFamily(t, reg, "adminfeed_tier_latency_seconds")
	var samples uint64
	for _, m := range latency.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("latency sample count = %d, want 3", samples)
	}
}

// TestRecordFallbackExhausted_IncrementsCounter は全ティア失敗カウンタが増加することを検証する。
func TestRecordFallbackExhausted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFallbackExhausted("alnav")

	mf := findMetricFamily(t, reg, "adminfeed_fallback_exhausted_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("fallback_exhausted_total = %v, want 1", val)
	}
}

// TestRecordMessagesServed_AddsCount は返却メッセージ数が加算されることを検証する。
func TestRecordMessagesServed_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMessagesServed("secnav", 5)
	c.RecordMessagesServed("secnav", 3)

	mf := findMetricFamily(t, reg, "adminfeed_messages_served_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 8 {
		t.Errorf("messages_served_total = %v, want 8", val)
	}
}

// TestRecordUpstreamStatus_RecordsByStatusCode はステータスコード別に記録されることを検証する。
func TestRecordUpstreamStatus_RecordsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamStatus("proxy", 200)
	c.RecordUpstreamStatus("proxy", 200)
	c.RecordUpstreamStatus("proxy", 502)

	mf := findMetricFamily(t, reg, "adminfeed_upstream_http_status_total")
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if counts["200"] != 2 {
		t.Errorf("status 200 = %v, want 2", counts["200"])
	}
	if counts["502"] != 1 {
		t.Errorf("status 502 = %v, want 1", counts["502"])
	}
}

// TestHandler_ServesMetrics はハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFallbackExhausted("maradmin")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "adminfeed_fallback_exhausted_total") {
		t.Error("response should contain adminfeed_fallback_exhausted_total metric")
	}
}
