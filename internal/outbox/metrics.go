package outbox

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the dispatcher's Prometheus instrumentation, including a
// counter for records that exhausted their retry budget. The dispatcher
// increments the three counters; nothing sets the Pending gauge. The
// collectors are exported only once a host process calls MustRegister
// and serves the registry; cmd/outboxworker does neither.
var (
	Pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending",
		Help: "Outbox rows currently in pending or failed status.",
	})
	DispatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_dispatch_total",
		Help: "Outbox records successfully published to the bus.",
	})
	DispatchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_dispatch_failures_total",
		Help: "Outbox publish attempts that failed and were scheduled for retry.",
	})
	PoisonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_dispatch_poisoned_total",
		Help: "Outbox records left in processing after exceeding OUTBOX_MAX_ATTEMPTS.",
	})
)

func MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(Pending, DispatchTotal, DispatchFailuresTotal, PoisonedTotal)
}
