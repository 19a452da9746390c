package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		batchItemsTotal,
		batchChunkDuration,
		batchRunsTotal,
	)
}

var (
	batchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Items processed by the batch processor, labeled by operation and result.",
		},
		[]string{"operation", "result"}, // result: 'success', 'failure'
	)

	batchChunkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batch_chunk_duration_seconds",
			Help:    "Wall time spent on one chunk of a batch run.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	batchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_runs_total",
			Help: "Batch runs by final status.",
		},
		[]string{"status"}, // 'completed', 'partial', 'failed', 'cancelled'
	)
)

func AddBatchItems(operation string, success, failure int) {
	batchItemsTotal.WithLabelValues(norm(operation), "success").Add(float64(success))
	batchItemsTotal.WithLabelValues(norm(operation), "failure").Add(float64(failure))
}

func ObserveChunk(operation string, d time.Duration) {
	batchChunkDuration.WithLabelValues(norm(operation)).Observe(d.Seconds())
}

func IncBatchRun(status string) {
	batchRunsTotal.WithLabelValues(norm(status)).Inc()
}
