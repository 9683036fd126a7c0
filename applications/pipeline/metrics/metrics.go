package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mediastor/imgmeta/applications/pipeline/domain"
)

// Batch exports per-batch outcome counters. Observability only, the
// counters feed no decisions inside the pipeline.
type Batch struct {
	batches   prometheus.Counter
	processed prometheus.Counter
	skipped   prometheus.Counter
	errors    prometheus.Counter
}

func NewBatch(reg prometheus.Registerer) *Batch {
	b := &Batch{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgmeta",
			Subsystem: "worker",
			Name:      "batches_total",
			Help:      "Number of work item batches run.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgmeta",
			Subsystem: "worker",
			Name:      "items_processed_total",
			Help:      "Number of work items that produced a metadata sidecar.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgmeta",
			Subsystem: "worker",
			Name:      "items_skipped_total",
			Help:      "Number of work items skipped by policy or idempotency.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgmeta",
			Subsystem: "worker",
			Name:      "items_errored_total",
			Help:      "Number of work items that ended in a classified error.",
		}),
	}

	reg.MustRegister(b.batches, b.processed, b.skipped, b.errors)

	return b
}

// Observe folds a batch summary into the counters.
func (b *Batch) Observe(s domain.BatchSummary) {
	b.batches.Inc()
	b.processed.Add(float64(s.Processed))
	b.skipped.Add(float64(s.Skipped))
	b.errors.Add(float64(s.Errors))
}
