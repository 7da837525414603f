package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	spawnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "redlite",
		Subsystem: "manager",
		Name:      "spawns_total",
		Help:      "Server processes spawned.",
	})

	spawnFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redlite",
		Subsystem: "manager",
		Name:      "spawn_failures_total",
		Help:      "Spawns that never reached ready, by failure kind.",
	}, []string{"kind"})

	instancesReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "redlite",
		Subsystem: "manager",
		Name:      "instances_ready",
		Help:      "Instances currently in the ready state.",
	})

	stopsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "redlite",
		Subsystem: "manager",
		Name:      "stops_total",
		Help:      "Instance stop operations completed.",
	})
)

func init() {
	prometheus.MustRegister(spawnsTotal, spawnFailures, instancesReady, stopsTotal)
}
