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

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 协调操作指标
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	agentsRegistered  prometheus.Gauge

	// 邮箱指标
	messagesDelivered *prometheus.CounterVec
	deliveryFailures  *prometheus.CounterVec

	// 分配指标
	tasksAssigned    *prometheus.CounterVec
	tasksUnallocated *prometheus.CounterVec

	// 共识指标
	decisionsTotal *prometheus.CounterVec
	votesTotal     *prometheus.CounterVec

	// 知识同步指标
	factsPushed     *prometheus.CounterVec
	pushFailures    *prometheus.CounterVec
	syncConvergence *prometheus.GaugeVec

	// 规划指标
	planTasks        prometheus.Histogram
	planCriticalPath prometheus.Histogram

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry 创建指标收集器，注册到指定 Registerer
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 协调操作指标
	c.operationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of coordinator operations",
		},
		[]string{"operation", "status"}, // status: ok 或错误码
	)

	c.operationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Coordinator operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"operation"},
	)

	c.agentsRegistered = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_registered",
			Help:      "Number of agents in the directory",
		},
	)

	// 邮箱指标
	c.messagesDelivered = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of messages enqueued into mailboxes",
		},
		[]string{"mode"},
	)

	c.deliveryFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Total number of failed mailbox deliveries",
		},
		[]string{"code"},
	)

	// 分配指标
	c.tasksAssigned = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_assigned_total",
			Help:      "Total number of tasks assigned",
		},
		[]string{"strategy"},
	)

	c.tasksUnallocated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_unallocated_total",
			Help:      "Total number of tasks left unallocated",
		},
		[]string{"strategy"},
	)

	// 共识指标
	c.decisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_decisions_total",
			Help:      "Total number of consensus decisions",
		},
		[]string{"protocol", "outcome"}, // outcome: accepted, rejected
	)

	c.votesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_votes_total",
			Help:      "Total number of ballots by kind",
		},
		[]string{"protocol", "kind"}, // kind: in_favor, against, abstain
	)

	// 知识同步指标
	c.factsPushed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_facts_pushed_total",
			Help:      "Total number of knowledge facts pushed to agents",
		},
		[]string{"strategy"},
	)

	c.pushFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_push_failures_total",
			Help:      "Total number of failed knowledge pushes",
		},
		[]string{"strategy"},
	)

	c.syncConvergence = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_convergence_ratio",
			Help:      "Convergence ratio after the last synchronization",
		},
		[]string{"strategy"},
	)

	// 规划指标
	c.planTasks = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_tasks",
			Help:      "Number of tasks per collaborative plan",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		},
	)

	c.planCriticalPath = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_critical_path_hours",
			Help:      "Estimated critical path length of collaborative plans in hours",
			Buckets:   []float64{1, 4, 8, 24, 72, 168},
		},
	)

	// 数据库指标
	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤝 协调操作指标记录
// =============================================================================

// RecordOperation 记录一次协调操作，status 为 "ok" 或错误码
func (c *Collector) RecordOperation(operation, status string, duration time.Duration) {
	c.operationsTotal.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetAgentsRegistered 记录目录中的 Agent 数
func (c *Collector) SetAgentsRegistered(n int) {
	c.agentsRegistered.Set(float64(n))
}

// RecordDelivery 记录邮箱投递结果
func (c *Collector) RecordDelivery(mode string, delivered int, failureCodes []string) {
	c.messagesDelivered.WithLabelValues(mode).Add(float64(delivered))
	for _, code := range failureCodes {
		c.deliveryFailures.WithLabelValues(code).Inc()
	}
}

// RecordAllocation 记录任务分配结果
func (c *Collector) RecordAllocation(strategy string, assigned, unallocated int) {
	c.tasksAssigned.WithLabelValues(strategy).Add(float64(assigned))
	c.tasksUnallocated.WithLabelValues(strategy).Add(float64(unallocated))
}

// RecordDecision 记录共识结果
func (c *Collector) RecordDecision(protocol string, accepted bool, inFavor, against, abstain int) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	c.decisionsTotal.WithLabelValues(protocol, outcome).Inc()
	c.votesTotal.WithLabelValues(protocol, "in_favor").Add(float64(inFavor))
	c.votesTotal.WithLabelValues(protocol, "against").Add(float64(against))
	c.votesTotal.WithLabelValues(protocol, "abstain").Add(float64(abstain))
}

// RecordSync 记录知识同步结果
func (c *Collector) RecordSync(strategy string, pushed, failed int, convergence float64) {
	c.factsPushed.WithLabelValues(strategy).Add(float64(pushed))
	c.pushFailures.WithLabelValues(strategy).Add(float64(failed))
	c.syncConvergence.WithLabelValues(strategy).Set(convergence)
}

// RecordPlan 记录协作计划规模与关键路径
func (c *Collector) RecordPlan(tasks int, criticalPath time.Duration) {
	c.planTasks.Observe(float64(tasks))
	c.planCriticalPath.Observe(criticalPath.Hours())
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
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
