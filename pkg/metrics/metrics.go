// Package metrics documents the Prometheus metrics exported by the service.
// Each metric is defined and registered via promauto in the package that
// records it, so importing a package is enough to register its metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registerer every package's metrics end up in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is what the server's /metrics endpoint serves.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric family the service exports.
var Names = []string{
	"ordiscan_requests_total",
	"ordiscan_request_duration_seconds",
	"ordiscan_errors_total",
	"inscription_fetches_total",
	"inscription_pages_total",
	"batch_requests_total",
	"batch_addresses_total",
	"batch_duration_seconds",
}

// Metrics Documentation
//
// Upstream client (pkg/client):
//   - ordiscan_requests_total{endpoint, status} (Counter): requests by endpoint template and HTTP status
//   - ordiscan_request_duration_seconds{endpoint} (Histogram): round-trip time
//   - ordiscan_errors_total{class} (Counter): client, server, network
//
// Fetcher (pkg/inscriptions):
//   - inscription_fetches_total{mode, result} (Counter): result is ok, upstream_error or error
//   - inscription_pages_total{mode} (Counter): pages requested, terminating empty pages included
//
// Orchestrator (pkg/batch):
//   - batch_requests_total{result} (Counter): ok or invalid
//   - batch_addresses_total (Counter): addresses processed, duplicates included
//   - batch_duration_seconds (Histogram): wall time per batch
//
// Example Prometheus Queries:
//
//   # Upstream error ratio
//   sum(rate(ordiscan_errors_total[5m])) / sum(rate(ordiscan_requests_total[5m]))
//
//   # Average pages per fetch
//   sum(rate(inscription_pages_total[5m])) / sum(rate(inscription_fetches_total[5m]))
//
//   # P95 batch latency
//   histogram_quantile(0.95, rate(batch_duration_seconds_bucket[5m]))
