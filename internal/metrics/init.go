package metrics

// Job terminal states and upload outcomes used as label values. They are
// duplicated here rather than imported to keep this package a leaf.
var (
	jobStatuses     = []string{"succeeded", "failed", "killed", "timed_out", "canceled"}
	uploadOutcomes  = []string{"accepted", "no_file", "too_large", "invalid_mime", "storage_error"}
	deliveryReasons = []string{"client_gone", "write_timeout", "io_error"}
	scratchRoles    = []string{"input", "output"}
	retryOperations = []string{"remove", "stat"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range jobStatuses {
		TranscoderJobsTotal.WithLabelValues(status)
	}

	for _, outcome := range uploadOutcomes {
		UploadsTotal.WithLabelValues(outcome)
	}

	for _, reason := range deliveryReasons {
		DeliveryFailuresTotal.WithLabelValues(reason)
	}

	for _, role := range scratchRoles {
		ScratchFilesCreated.WithLabelValues(role)
		ScratchFilesDeleted.WithLabelValues(role)
		ScratchFiles.WithLabelValues(role)
		ScratchBytes.WithLabelValues(role)
		ScratchFreeBytes.WithLabelValues(role)
	}

	for _, op := range retryOperations {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
	}
}
