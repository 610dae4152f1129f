package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.turnsTotal)
	assert.NotNil(t, collector.modelRequestsTotal)
	assert.NotNil(t, collector.eventsDropped)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/test", 503, 50*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "5xx")))
}

func TestCollector_RecordTurn(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTurn("success", 2*time.Second)
	collector.RecordTurn("success", time.Second)
	collector.RecordTurn("MODEL_TIMEOUT", 60*time.Second)
	collector.RecordSelection("least_spoken", false)
	collector.RecordSelection("loop_override", true)
	collector.RecordLedgerAppend(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.turnsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.turnsTotal.WithLabelValues("MODEL_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.loopOverrides))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.speakerSelections))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.ledgerAppendDuration))
}

func TestCollector_RecordModelRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordModelRequest("openai", "think", "success", 500*time.Millisecond, 100, 50)
	collector.RecordModelRequest("openai", "speak", "success", 700*time.Millisecond, 120, 80)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.modelRequestsTotal.WithLabelValues("openai", "think", "success")))
	assert.Equal(t, 220.0, testutil.ToFloat64(collector.modelTokensUsed.WithLabelValues("openai", "prompt")))
	assert.Equal(t, 130.0, testutil.ToFloat64(collector.modelTokensUsed.WithLabelValues("openai", "completion")))
}

func TestCollector_SearchMemoryEvents(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSearch("hit")
	collector.RecordSearch("error")
	collector.RecordMemoryWrite("episodic", "success")
	collector.RecordEventPublished("transcript")
	collector.RecordEventDropped()
	collector.RecordEventDropped()

	assert.Equal(t, 2, testutil.CollectAndCount(collector.searchRequestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.memoryWritesTotal.WithLabelValues("episodic", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.eventsPublished.WithLabelValues("transcript")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.eventsDropped))
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBConnections("postgres", 10, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector
	assert.NotPanics(t, func() {
		collector.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		collector.RecordTurn("success", time.Second)
		collector.RecordSelection("fallback", true)
		collector.RecordModelRequest("p", "think", "success", time.Second, 1, 1)
		collector.RecordSearch("hit")
		collector.RecordMemoryWrite("episodic", "error")
		collector.RecordEventPublished("transcript")
		collector.RecordEventDropped()
		collector.RecordLedgerAppend(time.Millisecond)
		collector.RecordDBConnections("db", 1, 1)
	})
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond)
			collector.RecordTurn("success", time.Second)
			collector.RecordModelRequest("openai", "speak", "success", time.Second, 1, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.turnsTotal.WithLabelValues("success")))
}
