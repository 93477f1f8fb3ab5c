package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "tracker",
		Name:      "events_processed_total",
		Help:      "Activity notifications applied to the session store.",
	}, []string{"type"})

	eventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "tracker",
		Name:      "event_errors_total",
		Help:      "Activity notifications dropped because the store write failed.",
	}, []string{"type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "tracker",
		Name:      "events_dropped_total",
		Help:      "Notifications dropped because a dispatcher queue was full.",
	})

	aggregationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "aggregator",
		Name:      "runs_total",
		Help:      "Completed aggregation cycles.",
	})

	aggregationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "aggregator",
		Name:      "failures_total",
		Help:      "Aggregation cycles rolled back due to an error.",
	})

	rowsDrained = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "aggregator",
		Name:      "rows_drained_total",
		Help:      "Session store rows folded into durable counters and deleted.",
	}, []string{"table"})
)
