// Package rmetrics exposes Relay's Prometheus metrics: queue depths, session
// counts, admission decisions, and per-lane throughput — the teacher's go.mod
// carries github.com/prometheus/client_golang as a direct dependency for
// exactly this kind of counter/gauge instrumentation.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package rmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registry = prometheus.NewRegistry()

	SessionsActive = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "sessions_active",
		Help:      "Number of sessions currently tracked by the manager.",
	})

	SessionsCreatedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "sessions_created_total",
		Help:      "Total sessions created.",
	})

	SessionsExpiredTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "sessions_expired_total",
		Help:      "Total sessions removed by the monitor, by reason.",
	}, []string{"reason"})

	AdmissionRejectedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "admission_rejected_total",
		Help:      "Total create_session calls refused by admission control.",
	})

	QueueDepth = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "queue_depth",
		Help:      "Current depth of a session lane queue.",
	}, []string{"lane"})

	FramesProcessedTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "frames_processed_total",
		Help:      "Total (entity path, frame) entries flushed to the viewer, by lane.",
	}, []string{"lane"})

	ProcessorFaultsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "processor_faults_total",
		Help:      "Total processor.process() failures, by processor name.",
	}, []string{"processor"})

	CPUPercent = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "host_cpu_percent",
		Help:      "Last-sampled host CPU utilization percent.",
	})

	MemPercent = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "host_mem_percent",
		Help:      "Last-sampled host memory utilization percent.",
	})
)
