/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BSAI-24005/file-verse/pkg/metric/ttl"
)

var (
	clientLabel    = "client"
	transportLabel = "transport"
	defaultTTL     = 10 * time.Minute
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnifs_requests_total",
			Help: "Number of dispatched requests by operation and status.",
		},
		[]string{"operation", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omnifs_request_duration_seconds",
			Help:    "Time from dequeue to reply written, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"operation"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omnifs_queue_depth",
			Help: "Number of requests waiting for the dispatcher.",
		},
	)

	ConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omnifs_connections_active",
			Help: "Number of open client connections.",
		},
		[]string{transportLabel},
	)

	ClientLastRequest = ttl.NewGaugeVecWithTTL(
		prometheus.GaugeOpts{
			Name: "omnifs_client_last_request_timestamp",
			Help: "Unix time of the last request seen from a client.",
		},
		[]string{clientLabel, transportLabel},
		defaultTTL,
	)
)

// ObserveRequest records one dispatched request.
func ObserveRequest(operation, status string, took time.Duration) {
	RequestsTotal.WithLabelValues(operation, status).Inc()
	RequestDuration.WithLabelValues(operation).Observe(took.Seconds())
}
