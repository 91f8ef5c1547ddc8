package metric

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	replicaNamespace = "go_pq_replica"
	setupSubsystem   = "setup"
	syncSubsystem    = "relation_sync"
)

type Metric interface {
	SetupRunIncrement()
	SetupFailureIncrement(stage string)
	PublicationCreatedIncrement()
	SubscriptionCreatedIncrement()
	SetLastRunSuccess(success bool)
	SetRelationSyncCount(state string, count float64)

	PrometheusCollectors() []prometheus.Collector
}

type metric struct {
	setupRuns            prometheus.Counter
	setupFailures        *prometheus.CounterVec
	publicationsCreated  prometheus.Counter
	subscriptionsCreated prometheus.Counter
	lastRunSuccess       prometheus.Gauge
	relationSyncStates   *prometheus.GaugeVec
}

func NewMetric(publicationName string) Metric {
	hostname, _ := os.Hostname()
	constLabels := prometheus.Labels{
		"publication_name": publicationName,
		"host":             hostname,
	}

	return &metric{
		setupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   replicaNamespace,
			Subsystem:   setupSubsystem,
			Name:        "runs_total",
			Help:        "total number of replication setup runs",
			ConstLabels: constLabels,
		}),
		setupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   replicaNamespace,
			Subsystem:   setupSubsystem,
			Name:        "failures_total",
			Help:        "total number of failed replication setup runs by stage",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		publicationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   replicaNamespace,
			Subsystem:   setupSubsystem,
			Name:        "publications_created_total",
			Help:        "total number of publications created on the primary",
			ConstLabels: constLabels,
		}),
		subscriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   replicaNamespace,
			Subsystem:   setupSubsystem,
			Name:        "subscriptions_created_total",
			Help:        "total number of subscriptions created on the replica",
			ConstLabels: constLabels,
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   replicaNamespace,
			Subsystem:   setupSubsystem,
			Name:        "last_run_success",
			Help:        "whether the last replication setup run completed successfully",
			ConstLabels: constLabels,
		}),
		relationSyncStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   replicaNamespace,
			Subsystem:   syncSubsystem,
			Name:        "relations",
			Help:        "number of subscribed relations by sync state as of the last report",
			ConstLabels: constLabels,
		}, []string{"state"}),
	}
}

func (m *metric) SetupRunIncrement() {
	m.setupRuns.Inc()
}

func (m *metric) SetupFailureIncrement(stage string) {
	m.setupFailures.WithLabelValues(stage).Inc()
}

func (m *metric) PublicationCreatedIncrement() {
	m.publicationsCreated.Inc()
}

func (m *metric) SubscriptionCreatedIncrement() {
	m.subscriptionsCreated.Inc()
}

func (m *metric) SetLastRunSuccess(success bool) {
	if success {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
}

func (m *metric) SetRelationSyncCount(state string, count float64) {
	m.relationSyncStates.WithLabelValues(state).Set(count)
}

func (m *metric) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.setupRuns,
		m.setupFailures,
		m.publicationsCreated,
		m.subscriptionsCreated,
		m.lastRunSuccess,
		m.relationSyncStates,
	}
}
