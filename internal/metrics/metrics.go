// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// HTTPミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordObservationCreated(kind string)
	RecordObservationDeleted(kind string)
	RecordSpatialQuery(kind string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests        *prometheus.CounterVec
	httpLatency         prometheus.Histogram
	observationsCreated *prometheus.CounterVec
	observationsDeleted *prometheus.CounterVec
	spatialQueries      *prometheus.CounterVec
	spatialLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropmap_http_requests_total",
			Help: "HTTPメソッド・ステータスコード別のリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropmap_http_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		observationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropmap_observations_created_total",
			Help: "作成された観測データ（point/polygon）の合計数",
		}, []string{"kind"}),
		observationsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropmap_observations_deleted_total",
			Help: "削除された観測データ（point/polygon）の合計数",
		}, []string{"kind"}),
		spatialQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropmap_spatial_queries_total",
			Help: "矩形範囲検索の実行数",
		}, []string{"kind"}),
		spatialLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropmap_spatial_query_latency_seconds",
			Help:    "矩形範囲検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.observationsCreated,
		c.observationsDeleted,
		c.spatialQueries,
		c.spatialLatency,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの完了を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordObservationCreated は観測データの作成を記録する。
func (c *Collector) RecordObservationCreated(kind string) {
	c.observationsCreated.WithLabelValues(kind).Inc()
}

// RecordObservationDeleted は観測データの削除を記録する。
func (c *Collector) RecordObservationDeleted(kind string) {
	c.observationsDeleted.WithLabelValues(kind).Inc()
}

// RecordSpatialQuery は矩形範囲検索の実行を記録する。
func (c *Collector) RecordSpatialQuery(kind string, duration time.Duration) {
	c.spatialQueries.WithLabelValues(kind).Inc()
	c.spatialLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// HTTPMiddleware はリクエストの完了をメトリクスに記録するミドルウェアを返す。
func HTTPMiddleware(collector MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			collector.RecordHTTPRequest(r.Method, rec.statusCode, time.Since(start))
		})
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}
