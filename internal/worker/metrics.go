package worker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// processorMetrics holds OTel instruments for job processing. Registered
// against the global delegating provider at init time, so they forward to
// the real provider once telemetry.Init runs, mirroring the teacher's
// doltMetrics package-level registration in internal/storage/dolt/store.go.
var processorMetrics struct {
	jobsProcessed metric.Int64Counter
	jobsTriggered metric.Int64Counter
	jobsSkipped   metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/flare-signals/signal-engine/worker")
	processorMetrics.jobsProcessed, _ = m.Int64Counter("flare.worker.jobs_processed",
		metric.WithDescription("Signal evaluation jobs processed"),
		metric.WithUnit("{job}"),
	)
	processorMetrics.jobsTriggered, _ = m.Int64Counter("flare.worker.jobs_triggered",
		metric.WithDescription("Signal evaluation jobs that triggered a webhook dispatch"),
		metric.WithUnit("{job}"),
	)
	processorMetrics.jobsSkipped, _ = m.Int64Counter("flare.worker.jobs_skipped",
		metric.WithDescription("Jobs skipped due to cooldown, or a missing/inactive signal"),
		metric.WithUnit("{job}"),
	)
}
