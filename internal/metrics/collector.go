// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法在 nil 接收者上是空操作，
// 组件可以在未配置指标时直接传 nil。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 回合指标
	turnsTotal        *prometheus.CounterVec
	turnDuration      prometheus.Histogram
	speakerSelections *prometheus.CounterVec
	loopOverrides     prometheus.Counter

	// 模型指标
	modelRequestsTotal   *prometheus.CounterVec
	modelRequestDuration *prometheus.HistogramVec
	modelTokensUsed      *prometheus.CounterVec

	// 检索与记忆
	searchRequestsTotal *prometheus.CounterVec
	memoryWritesTotal   *prometheus.CounterVec

	// 记录账本
	ledgerAppendDuration prometheus.Histogram

	// 事件
	eventsPublished *prometheus.CounterVec
	eventsDropped   prometheus.Counter

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 回合指标
	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of meeting turns by outcome",
		},
		[]string{"status"},
	)

	c.turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
	)

	c.speakerSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_selections_total",
			Help:      "Speaker selections by rule",
		},
		[]string{"reason"},
	)

	c.loopOverrides = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_overrides_total",
			Help:      "Turns where loop detection forced the facilitator",
		},
	)

	// 模型指标
	c.modelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Total number of model invocations",
		},
		[]string{"provider", "phase", "status"},
	)

	c.modelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Model invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
		},
		[]string{"provider", "phase"},
	)

	c.modelTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "type"}, // type: prompt, completion
	)

	// 检索与记忆
	c.searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of research lookups",
		},
		[]string{"status"},
	)

	c.memoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_writes_total",
			Help:      "Total number of agent memory writes",
		},
		[]string{"type", "status"},
	)

	c.ledgerAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_append_duration_seconds",
			Help:      "Transcript append duration including lock wait",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// 事件
	c.eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of meeting events accepted for delivery",
		},
		[]string{"type"},
	)

	c.eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Meeting events dropped because the outbound queue was full",
		},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🗣️ 回合指标记录
// =============================================================================

// RecordTurn 记录一次回合结果，status 为 success 或错误码
func (c *Collector) RecordTurn(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(status).Inc()
	c.turnDuration.Observe(duration.Seconds())
}

// RecordSelection 记录发言者选择
func (c *Collector) RecordSelection(reason string, loopOverride bool) {
	if c == nil {
		return
	}
	c.speakerSelections.WithLabelValues(reason).Inc()
	if loopOverride {
		c.loopOverrides.Inc()
	}
}

// RecordLedgerAppend 记录账本追加耗时
func (c *Collector) RecordLedgerAppend(duration time.Duration) {
	if c == nil {
		return
	}
	c.ledgerAppendDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🤖 模型指标记录
// =============================================================================

// RecordModelRequest 记录模型调用，phase 为 think 或 speak
func (c *Collector) RecordModelRequest(provider, phase, status string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.modelRequestsTotal.WithLabelValues(provider, phase, status).Inc()
	c.modelRequestDuration.WithLabelValues(provider, phase).Observe(duration.Seconds())
	c.modelTokensUsed.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	c.modelTokensUsed.WithLabelValues(provider, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🔎 检索、记忆与事件
// =============================================================================

// RecordSearch 记录检索结果：hit、empty 或 error
func (c *Collector) RecordSearch(status string) {
	if c == nil {
		return
	}
	c.searchRequestsTotal.WithLabelValues(status).Inc()
}

// RecordMemoryWrite 记录记忆写入
func (c *Collector) RecordMemoryWrite(memoryType, status string) {
	if c == nil {
		return
	}
	c.memoryWritesTotal.WithLabelValues(memoryType, status).Inc()
}

// RecordEventPublished 记录进入发送队列的事件
func (c *Collector) RecordEventPublished(eventType string) {
	if c == nil {
		return
	}
	c.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped 记录因队列满被丢弃的事件
func (c *Collector) RecordEventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
