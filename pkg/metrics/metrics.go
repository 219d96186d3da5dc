// Package metrics 推荐服务的 Prometheus 指标，进程内以 promauto 注册到默认 registry，
// 通过 /metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 推荐请求
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuerec_recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "venuerec_recommend_duration_seconds",
			Help:    "Recommendation latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// 流水线节点
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venuerec_pipeline_node_duration_seconds",
			Help:    "Pipeline node duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	// 结果缓存
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "venuerec_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "venuerec_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuerec_cache_errors_total",
			Help: "Total number of result cache backend errors",
		},
		[]string{"op"},
	)

	// 模型训练
	TrainRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuerec_train_runs_total",
			Help: "Total number of ALS training runs by outcome",
		},
		[]string{"outcome"},
	)

	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "venuerec_train_duration_seconds",
			Help:    "ALS training duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	ModelGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "venuerec_model_generation",
			Help: "Number of the currently published model generation",
		},
	)

	ModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "venuerec_model_users",
			Help: "Users in the current model generation",
		},
	)

	ModelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "venuerec_model_items",
			Help: "Brands in the current model generation",
		},
	)

	// 文本编码器熔断
	EncoderBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venuerec_encoder_breaker_transitions_total",
			Help: "Text encoder circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)
)

// RecordRecommend 记录一次推荐请求。
func RecordRecommend(outcome string, duration time.Duration) {
	RecommendRequests.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

// RecordNode 作为 pipeline.Observer 使用。
func RecordNode(node string, elapsed time.Duration) {
	NodeDuration.WithLabelValues(node).Observe(elapsed.Seconds())
}

// RecordTrainEmpty 记录一次没有交互数据、未产生新模型的训练。
func RecordTrainEmpty(duration time.Duration) {
	TrainDuration.Observe(duration.Seconds())
	TrainRuns.WithLabelValues("empty").Inc()
}

// RecordTrain 记录一次训练；成功时同步模型规模。
func RecordTrain(duration time.Duration, generation int64, users, items int, err error) {
	TrainDuration.Observe(duration.Seconds())
	if err != nil {
		TrainRuns.WithLabelValues("error").Inc()
		return
	}
	TrainRuns.WithLabelValues("success").Inc()
	ModelGeneration.Set(float64(generation))
	ModelUsers.Set(float64(users))
	ModelItems.Set(float64(items))
}
