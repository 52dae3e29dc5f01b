package metrics

import (
	"net/http"
	"sync"
	"time"

	"seedslot/go-backend/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seedslot"

type opMetric struct {
	count   int
	errors  int
	totalNs int64
	maxNs   int64
	lastNs  int64
}

// Recorder exports ledger activity to prometheus and keeps an in-process snapshot for
// the rpc metrics method.
type Recorder struct {
	gatherer   prometheus.Gatherer
	txTotal    *prometheus.CounterVec
	txDuration *prometheus.HistogramVec
	slots      *prometheus.GaugeVec
	conflicts  prometheus.Counter
	retries    prometheus.Counter
	rpcErrors  *prometheus.CounterVec

	mu            sync.RWMutex
	opMetrics     map[string]*opMetric
	errorCounters map[string]int
	slotCounts    map[string]int
	conflictCount int
	retryCount    int
	lastUpdatedAt time.Time
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		gatherer: reg,
		txTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_total",
			Help:      "Processed transactions by program, instruction and status.",
		}, []string{"program", "instruction", "status"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tx_duration_seconds",
			Help:      "Transaction processing latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"program", "instruction"}),
		slots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots",
			Help:      "Allocated slots by owning program.",
		}, []string{"program"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Commits rejected because a read slot changed concurrently.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Client resubmissions after a conflict.",
		}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "RPC failures by error kind.",
		}, []string{"kind"}),
		opMetrics:     make(map[string]*opMetric),
		errorCounters: make(map[string]int),
		slotCounts:    make(map[string]int),
	}
	reg.MustRegister(r.txTotal, r.txDuration, r.slots, r.conflicts, r.retries, r.rpcErrors)
	return r
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveTx(program, instruction, status string, elapsed time.Duration) {
	r.txTotal.WithLabelValues(program, instruction, status).Inc()
	r.txDuration.WithLabelValues(program, instruction).Observe(elapsed.Seconds())

	name := program + "." + instruction
	latency := elapsed.Nanoseconds()
	r.mu.Lock()
	defer r.mu.Unlock()
	metric, ok := r.opMetrics[name]
	if !ok {
		metric = &opMetric{}
		r.opMetrics[name] = metric
	}
	metric.count++
	if status != "ok" {
		metric.errors++
	}
	metric.totalNs += latency
	metric.lastNs = latency
	if latency > metric.maxNs {
		metric.maxNs = latency
	}
	r.lastUpdatedAt = time.Now().UTC()
}

func (r *Recorder) ObserveConflict() {
	r.conflicts.Inc()
	r.mu.Lock()
	r.conflictCount++
	r.lastUpdatedAt = time.Now().UTC()
	r.mu.Unlock()
}

func (r *Recorder) SetSlotCount(owner string, n int) {
	r.slots.WithLabelValues(owner).Set(float64(n))
	r.mu.Lock()
	r.slotCounts[owner] = n
	r.mu.Unlock()
}

func (r *Recorder) RecordRetryAttempt() {
	r.retries.Inc()
	r.mu.Lock()
	r.retryCount++
	r.lastUpdatedAt = time.Now().UTC()
	r.mu.Unlock()
}

func (r *Recorder) RecordError(kind string) {
	r.rpcErrors.WithLabelValues(kind).Inc()
	r.mu.Lock()
	r.errorCounters[kind]++
	r.lastUpdatedAt = time.Now().UTC()
	r.mu.Unlock()
}

func (r *Recorder) Snapshot() models.MetricsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := models.MetricsSnapshot{
		OperationStats:     make(map[string]models.OperationMetric, len(r.opMetrics)),
		ErrorCounters:      make(map[string]int, len(r.errorCounters)),
		SlotCounts:         make(map[string]int, len(r.slotCounts)),
		ConflictsTotal:     r.conflictCount,
		RetryAttemptsTotal: r.retryCount,
		LastUpdatedAt:      r.lastUpdatedAt,
	}
	for name, metric := range r.opMetrics {
		avg := int64(0)
		if metric.count > 0 {
			avg = metric.totalNs / int64(metric.count) / int64(time.Millisecond)
		}
		out.OperationStats[name] = models.OperationMetric{
			Count:         metric.count,
			Errors:        metric.errors,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  metric.maxNs / int64(time.Millisecond),
			LastLatencyMs: metric.lastNs / int64(time.Millisecond),
		}
	}
	for k, v := range r.errorCounters {
		out.ErrorCounters[k] = v
	}
	for k, v := range r.slotCounts {
		out.SlotCounts[k] = v
	}
	return out
}
