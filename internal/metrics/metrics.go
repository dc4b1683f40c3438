// Package metrics define los collectors Prometheus de la orquestación.
// Viven en un paquete propio para que task, reconfig y orchestrator los
// actualicen sin depender entre sí.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClusterOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secproto_cluster_outcomes_total",
		Help: "Clusters procesados por estado terminal",
	}, []string{"state"})

	TaskPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secproto_task_polls_total",
		Help: "Esperas de tareas remotas por scope y resultado",
	}, []string{"scope", "outcome"})

	TaskWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secproto_task_wait_seconds",
		Help:    "Tiempo esperando una tarea remota hasta su estado terminal",
		Buckets: prometheus.ExponentialBuckets(1, 2, 11),
	}, []string{"scope"})

	HostReconfigFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secproto_host_reconfig_failures_total",
		Help: "Reconfiguraciones de host que no terminaron en success",
	})

	Rollbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secproto_rollbacks_total",
		Help: "Rollbacks ejecutados por resultado",
	}, []string{"result"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{ClusterOutcomes, TaskPolls, TaskWaitSeconds, HostReconfigFailures, Rollbacks}
}

// Register registers the collectors on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveTask registra una espera de tarea terminada.
func ObserveTask(scope, outcome string, seconds float64) {
	TaskPolls.WithLabelValues(scope, outcome).Inc()
	TaskWaitSeconds.WithLabelValues(scope).Observe(seconds)
}
