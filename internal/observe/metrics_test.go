package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, not Sum[int64]", name, m.Data)
	}
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecordStoreFailure(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStoreFailure(ctx, "postgres", "create")
	m.RecordStoreFailure(ctx, "postgres", "create")
	m.RecordStoreFailure(ctx, "memory", "list")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "audioscribe.store.failures",
		attribute.String("driver", "postgres"), attribute.String("op", "create")); got != 2 {
		t.Errorf("postgres/create = %d, want 2", got)
	}
	if got := counterValue(t, rm, "audioscribe.store.failures",
		attribute.String("driver", "memory"), attribute.String("op", "list")); got != 1 {
		t.Errorf("memory/list = %d, want 1", got)
	}
}

func TestRecordProviderCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderCall(ctx, "deepgram", 0.8, "")
	m.RecordProviderCall(ctx, "deepgram", 1.2, "PROVIDER_ERROR")

	rm := collect(t, reader)
	hist := findMetric(rm, "audioscribe.provider.duration")
	if hist == nil {
		t.Fatal("provider duration metric not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(data.DataPoints) != 1 || data.DataPoints[0].Count != 2 {
		t.Errorf("histogram = %+v", hist.Data)
	}
	if got := counterValue(t, rm, "audioscribe.provider.errors",
		attribute.String("provider", "deepgram"), attribute.String("code", "PROVIDER_ERROR")); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestRecordTranscription(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordTranscription(context.Background(), "assemblyai", "saved")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "audioscribe.transcriptions",
		attribute.String("provider", "assemblyai"), attribute.String("outcome", "saved")); got != 1 {
		t.Errorf("transcriptions = %d, want 1", got)
	}
}

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, reader := newTestMetrics(t)

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/transcriptions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/abc", nil))

	rm := collect(t, reader)
	hist := findMetric(rm, "audioscribe.http.request.duration")
	if hist == nil {
		t.Fatal("http duration metric not found")
	}
	data := hist.Data.(metricdata.Histogram[float64])
	if len(data.DataPoints) != 1 {
		t.Fatalf("datapoints = %d", len(data.DataPoints))
	}
	route, _ := data.DataPoints[0].Attributes.Value("route")
	status, _ := data.DataPoints[0].Attributes.Value("status")
	if route.AsString() != "/transcriptions/:id" || status.AsString() != "404" {
		t.Errorf("attributes = %v", data.DataPoints[0].Attributes.ToSlice())
	}
}

func TestInitProvider_ServesPrometheus(t *testing.T) {
	tel, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	m, err := NewMetrics(tel.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordStoreFailure(context.Background(), "supabase", "create")

	w := httptest.NewRecorder()
	tel.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "audioscribe_store_failures") {
		t.Errorf("scrape output missing store failures counter:\n%s", w.Body.String())
	}
}
