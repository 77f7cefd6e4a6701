package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	EventsExportedTotal  *prometheus.CounterVec
	EventsImportedTotal  *prometheus.CounterVec
	SyncErrorsTotal      *prometheus.CounterVec
	MappingFailuresTotal prometheus.Counter
	JobsRunTotal         prometheus.Counter
	JobsFailedTotal      prometheus.Counter
)

// InitCustomMetrics initializes and registers the engine's Prometheus
// metrics. It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	EventsExportedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calsync_events_exported_total",
		Help: "Total number of feed events successfully exported.",
	}, []string{"provider"})
	EventsImportedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calsync_events_imported_total",
		Help: "Total number of external events imported or updated.",
	}, []string{"provider"})
	SyncErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calsync_sync_errors_total",
		Help: "Total number of per-item sync failures.",
	}, []string{"provider"})
	MappingFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calsync_mapping_failures_total",
		Help: "Total number of mapping writes that failed after a remote create.",
	})
	JobsRunTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calsync_jobs_run_total",
		Help: "Total number of operator job executions.",
	})
	JobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calsync_jobs_failed_total",
		Help: "Total number of failed operator job executions.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	collectors := map[string]prometheus.Collector{
		"EventsExportedTotal":  EventsExportedTotal,
		"EventsImportedTotal":  EventsImportedTotal,
		"SyncErrorsTotal":      SyncErrorsTotal,
		"MappingFailuresTotal": MappingFailuresTotal,
		"JobsRunTotal":         JobsRunTotal,
		"JobsFailedTotal":      JobsFailedTotal,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}

// Counters stay nil until InitCustomMetrics runs; engine code goes
// through these helpers so unit tests need no registry.

func IncExported(provider string) {
	if EventsExportedTotal != nil {
		EventsExportedTotal.WithLabelValues(provider).Inc()
	}
}

func IncImported(provider string) {
	if EventsImportedTotal != nil {
		EventsImportedTotal.WithLabelValues(provider).Inc()
	}
}

func IncSyncError(provider string) {
	if SyncErrorsTotal != nil {
		SyncErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func IncMappingFailure() {
	if MappingFailuresTotal != nil {
		MappingFailuresTotal.Inc()
	}
}

func IncJobRun() {
	if JobsRunTotal != nil {
		JobsRunTotal.Inc()
	}
}

func IncJobFailed() {
	if JobsFailedTotal != nil {
		JobsFailedTotal.Inc()
	}
}
