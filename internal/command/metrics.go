// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command execution metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
	StatusThrottled        = "throttled"
)

type metrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_command_executions_total",
			Help: "Command executions by command and status",
		}, []string{"command", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatekeeper_command_duration_seconds",
			Help:    "Command execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}
	reg.MustRegister(m.executions, m.duration)
	return m
}

// record is nil-safe so dispatchers without a registry skip metrics.
func (m *metrics) record(command, status string, elapsed time.Duration) {
	if m == nil || command == "" {
		return
	}
	m.executions.WithLabelValues(command, status).Inc()
	if status == StatusSuccess || status == StatusError {
		m.duration.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}
