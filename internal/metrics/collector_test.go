package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollectorWithRegistry(nextTestNamespace(), reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.operationsTotal)
	assert.NotNil(t, collector.decisionsTotal)
	assert.NotNil(t, collector.factsPushed)
}

func TestNewCollectorWithRegistry_IsolatedRegistries(t *testing.T) {
	// 同一 namespace 注册到不同 Registry 不冲突
	assert.NotPanics(t, func() {
		NewCollectorWithRegistry("same", prometheus.NewRegistry(), nil)
		NewCollectorWithRegistry("same", prometheus.NewRegistry(), nil)
	})
}

func TestCollector_RecordOperation(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordOperation("allocate_tasks", "ok", 10*time.Millisecond)
	collector.RecordOperation("allocate_tasks", "ok", 20*time.Millisecond)
	collector.RecordOperation("allocate_tasks", "ALLOCATION_INFEASIBLE", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.operationsTotal.WithLabelValues("allocate_tasks", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.operationsTotal.WithLabelValues("allocate_tasks", "ALLOCATION_INFEASIBLE")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.operationDuration))
}

func TestCollector_RecordDelivery(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordDelivery("broadcast", 4, []string{"UNKNOWN_AGENT"})
	collector.RecordDelivery("unicast", 1, nil)

	assert.Equal(t, 4.0, testutil.ToFloat64(collector.messagesDelivered.WithLabelValues("broadcast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.deliveryFailures.WithLabelValues("UNKNOWN_AGENT")))
}

func TestCollector_RecordDecision(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordDecision("majority", true, 4, 1, 0)
	collector.RecordDecision("unanimous", false, 4, 1, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.decisionsTotal.WithLabelValues("majority", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.decisionsTotal.WithLabelValues("unanimous", "rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.votesTotal.WithLabelValues("unanimous", "abstain")))
}

func TestCollector_RecordSyncAndPlan(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordSync("gossip", 12, 1, 0.75)
	collector.RecordSync("gossip", 3, 0, 1)
	collector.RecordAllocation("auction", 3, 1)
	collector.RecordPlan(5, 18*time.Hour)
	collector.SetAgentsRegistered(7)

	assert.Equal(t, 15.0, testutil.ToFloat64(collector.factsPushed.WithLabelValues("gossip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.syncConvergence.WithLabelValues("gossip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tasksUnallocated.WithLabelValues("auction")))
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.agentsRegistered))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.planCriticalPath))
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordHTTPRequest("GET", "/health", 200, 5*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/health", 503, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/health", "5xx")))
}

func TestCollector_DatabaseMetrics(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordDBConnections("postgres", 10, 5)
	collector.RecordDBQuery("postgres", "SELECT", 20*time.Millisecond)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.dbQueryDuration))
}

func TestCollector_GatherFromRegistry(t *testing.T) {
	collector, reg := newTestCollector(t)
	collector.RecordOperation("broadcast", "ok", time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, fmt.Sprint(names), "operations_total")
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordOperation("reach_consensus", "ok", time.Millisecond)
			collector.RecordDecision("weighted", true, 1, 0, 0)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.operationsTotal.WithLabelValues("reach_consensus", "ok")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.decisionsTotal.WithLabelValues("weighted", "accepted")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(500))
	assert.Equal(t, "unknown", statusCode(100))
}
