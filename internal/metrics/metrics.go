// Package metrics provides Prometheus metrics for rmbridge API traffic.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmbridge_api_requests_total",
			Help: "Total number of reMarkable Cloud API requests",
		},
		[]string{"method", "status"},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmbridge_auth_attempts_total",
			Help: "Total pairing and session creation attempts",
		},
		[]string{"operation", "result"},
	)

	contentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rmbridge_content_bytes_downloaded_total",
			Help: "Total bytes downloaded through signed URLs",
		},
	)

	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rmbridge_content_bytes_uploaded_total",
			Help: "Total bytes uploaded to the document endpoint",
		},
	)

	contentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmbridge_content_uploads_total",
			Help: "Total number of document uploads",
		},
		[]string{"status"},
	)

	hashResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmbridge_hash_resolutions_total",
			Help: "Total number of signed-URL resolutions",
		},
		[]string{"status"},
	)

	snapshotEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rmbridge_snapshot_entries",
			Help: "Documents plus folders in the last file system snapshot",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler for embedding
// applications that want to expose client metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest records one API round trip.
func RecordAPIRequest(method string, status int) {
	apiRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordAuthAttempt records a pairing or session creation attempt.
func RecordAuthAttempt(operation string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(operation, result).Inc()
}

// RecordDownload records a signed-URL content download.
func RecordDownload(bytes int64) {
	contentBytesDownloaded.Add(float64(bytes))
}

// RecordUpload records a document upload attempt.
func RecordUpload(bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	if success {
		contentBytesUploaded.Add(float64(bytes))
	}
	contentUploadsTotal.WithLabelValues(status).Inc()
}

// RecordHashResolution records a signed-URL resolution attempt.
func RecordHashResolution(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	hashResolutionsTotal.WithLabelValues(status).Inc()
}

// SetSnapshotEntries sets the size of the last snapshot.
func SetSnapshotEntries(count int) {
	snapshotEntries.Set(float64(count))
}
