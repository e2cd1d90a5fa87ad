package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_requests_total",
		Help: "Total number of /api/signature requests",
	})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edop_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	SignatureMissTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_signature_miss_total",
		Help: "Total signature lookups where no basin covers the point",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_redis_misses_total",
		Help: "Total redis cache misses",
	})
	MatrixRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_matrix_rows_total",
		Help: "Total feature matrix rows emitted by matrix builds",
	})
	ContinuousMissingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_continuous_missing_total",
		Help: "Total null continuous values defaulted to 0 during matrix builds",
	})
	VegetationMissingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_vegetation_missing_total",
		Help: "Total null vegetation shares defaulted to 0 during matrix builds",
	})
	CategoryMissingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edop_category_missing_total",
		Help: "Total null categorical values encoded as all-zero blocks",
	})
	CategoricalUnmatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edop_categorical_unmatched_total",
		Help: "Total categorical IDs absent from the lookup vocabulary, by field",
	}, []string{"field"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(SignatureMissTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(MatrixRowsTotal)
	prometheus.MustRegister(ContinuousMissingTotal)
	prometheus.MustRegister(VegetationMissingTotal)
	prometheus.MustRegister(CategoryMissingTotal)
	prometheus.MustRegister(CategoricalUnmatchedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
