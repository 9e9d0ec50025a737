package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPrometheus formats metrics in Prometheus text format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func FormatPrometheus(snap Snapshot) string {
	var sb strings.Builder

	sb.WriteString("# HELP healthscan_uptime_seconds Time since the service started\n")
	sb.WriteString("# TYPE healthscan_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("healthscan_uptime_seconds %d\n", snap.Uptime))
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_requests_total Total number of requests by endpoint\n")
	sb.WriteString("# TYPE healthscan_requests_total counter\n")
	for _, endpoint := range sortedKeys(snap.TotalRequests) {
		sb.WriteString(fmt.Sprintf("healthscan_requests_total{endpoint=%q} %d\n", endpoint, snap.TotalRequests[endpoint]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_request_errors_total Total number of request errors by endpoint\n")
	sb.WriteString("# TYPE healthscan_request_errors_total counter\n")
	for _, endpoint := range sortedKeys(snap.RequestErrors) {
		sb.WriteString(fmt.Sprintf("healthscan_request_errors_total{endpoint=%q} %d\n", endpoint, snap.RequestErrors[endpoint]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_requests_in_progress Current number of requests being processed\n")
	sb.WriteString("# TYPE healthscan_requests_in_progress gauge\n")
	for _, endpoint := range sortedKeys(snap.RequestsInProgress) {
		if count := snap.RequestsInProgress[endpoint]; count > 0 {
			sb.WriteString(fmt.Sprintf("healthscan_requests_in_progress{endpoint=%q} %d\n", endpoint, count))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_request_duration_ms_total Total request duration in milliseconds\n")
	sb.WriteString("# TYPE healthscan_request_duration_ms_total counter\n")
	for _, endpoint := range sortedKeys(snap.TotalRequestsDur) {
		sb.WriteString(fmt.Sprintf("healthscan_request_duration_ms_total{endpoint=%q} %d\n", endpoint, snap.TotalRequestsDur[endpoint]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_streams_started_total Relay streams opened\n")
	sb.WriteString("# TYPE healthscan_streams_started_total counter\n")
	sb.WriteString(fmt.Sprintf("healthscan_streams_started_total %d\n", snap.StreamsStarted))
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_streams_completed_total Relay streams that reached the sentinel cleanly\n")
	sb.WriteString("# TYPE healthscan_streams_completed_total counter\n")
	sb.WriteString(fmt.Sprintf("healthscan_streams_completed_total %d\n", snap.StreamsCompleted))
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_streams_failed_total Relay streams that ended on a producer or sink error\n")
	sb.WriteString("# TYPE healthscan_streams_failed_total counter\n")
	sb.WriteString(fmt.Sprintf("healthscan_streams_failed_total %d\n", snap.StreamsFailed))
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_fragments_emitted_total Fragments written to clients across all streams\n")
	sb.WriteString("# TYPE healthscan_fragments_emitted_total counter\n")
	sb.WriteString(fmt.Sprintf("healthscan_fragments_emitted_total %d\n", snap.FragmentsEmitted))
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_fallbacks_served_total Replies served from the canned producer\n")
	sb.WriteString("# TYPE healthscan_fallbacks_served_total counter\n")
	sb.WriteString(fmt.Sprintf("healthscan_fallbacks_served_total %d\n", snap.FallbacksServed))
	sb.WriteString("\n")

	sb.WriteString("# HELP healthscan_rate_limit_hits_total Total number of rate limit rejections\n")
	sb.WriteString("# TYPE healthscan_rate_limit_hits_total counter\n")
	sb.WriteString(fmt.Sprintf("healthscan_rate_limit_hits_total %d\n", snap.RateLimitHits))

	return sb.String()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
