package metrics

import "github.com/wbt-web-support/video-compress/internal/fetch"

// fetchObserver implements fetch.Observer using the Prometheus
// metrics declared in this package.
type fetchObserver struct{}

// NewFetchObserver creates an observer that records fetch metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewFetchObserver() fetch.Observer {
	return &fetchObserver{}
}

func (o *fetchObserver) ObserveOperation(operation string, durationSeconds float64, err error) {
	FetchOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
	if err != nil {
		FetchOperationErrors.WithLabelValues(operation).Inc()
	}
}

func (o *fetchObserver) ObserveRetryAttempt(operation string) {
	FetchRetryAttempts.WithLabelValues(operation).Inc()
}

func (o *fetchObserver) ObserveRetrySuccess(operation string) {
	FetchRetrySuccess.WithLabelValues(operation).Inc()
}

func (o *fetchObserver) ObserveRetryFailure(operation string) {
	FetchRetryFailures.WithLabelValues(operation).Inc()
}

func (o *fetchObserver) ObserveRetryDuration(operation string, durationSeconds float64) {
	FetchRetryDuration.WithLabelValues(operation).Observe(durationSeconds)
}

func (o *fetchObserver) ObserveThrottle(operation string) {
	FetchThrottledTotal.WithLabelValues(operation).Inc()
}
