package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "fleetwatch_"

var (
	registerOnce sync.Once

	ingestSamples *prometheus.CounterVec
	ingestErrors  *prometheus.CounterVec

	ruleEvaluations    *prometheus.CounterVec
	cooldownSuppressed *prometheus.CounterVec
	alarmEventsTotal   *prometheus.CounterVec

	evaluationCycles  *prometheus.CounterVec
	evaluationLatency *prometheus.HistogramVec
	evaluationBatch   *prometheus.HistogramVec

	reportExportTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestSamples = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_samples_total",
				Help: "Total ingested telemetry samples by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)

		ruleEvaluations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_evaluations_total",
				Help: "Total rule evaluations reaching the proposal stage, by family",
			},
			[]string{"family"},
		)
		cooldownSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cooldown_suppressed_total",
				Help: "Total proposals suppressed by rule-family cooldown",
			},
			[]string{"family"},
		)
		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm lifecycle events by family and type",
			},
			[]string{"family", "event"},
		)

		evaluationCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluation_cycles_total",
				Help: "Total engine evaluation cycles by kind",
			},
			[]string{"kind"},
		)
		evaluationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evaluation_cycle_seconds",
				Help:    "Evaluation cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)
		evaluationBatch = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evaluation_batch_size",
				Help:    "Devices or events covered per evaluation cycle",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestSamples,
			ingestErrors,
			ruleEvaluations,
			cooldownSuppressed,
			alarmEventsTotal,
			evaluationCycles,
			evaluationLatency,
			evaluationBatch,
			reportExportTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncIngestSamples counts ingested samples by result.
func IncIngestSamples(result string, count int) {
	if result == "" {
		result = "success"
	}
	if ingestSamples != nil && count > 0 {
		ingestSamples.WithLabelValues(result).Add(float64(count))
	}
}

// IncIngestError increments the ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncRuleEvaluation counts a rule evaluation by family.
func IncRuleEvaluation(family string) {
	if family == "" {
		family = "unknown"
	}
	if ruleEvaluations != nil {
		ruleEvaluations.WithLabelValues(family).Inc()
	}
}

// IncCooldownSuppressed counts a cooldown-suppressed proposal.
func IncCooldownSuppressed(family string) {
	if family == "" {
		family = "unknown"
	}
	if cooldownSuppressed != nil {
		cooldownSuppressed.WithLabelValues(family).Inc()
	}
}

// IncAlarmEvent counts an alarm lifecycle event.
func IncAlarmEvent(family, event string) {
	if family == "" {
		family = "unknown"
	}
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(family, event).Inc()
	}
}

// ObserveEvaluationCycle records one engine pass.
func ObserveEvaluationCycle(kind string, batchSize int, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if evaluationCycles != nil {
		evaluationCycles.WithLabelValues(kind).Inc()
	}
	if evaluationLatency != nil {
		evaluationLatency.WithLabelValues(kind).Observe(duration.Seconds())
	}
	if evaluationBatch != nil && batchSize >= 0 {
		evaluationBatch.WithLabelValues(kind).Observe(float64(batchSize))
	}
}

// IncReportExport counts a report export.
func IncReportExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = "success"
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "active_alarms",
			Help: "Currently active alarms",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM alarms WHERE status = 'active'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "devices_total",
			Help: "Registered devices",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM devices")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
