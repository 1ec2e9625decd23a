package api

// MetricsRecorder receives client telemetry. Implemented by the prometheus adapter.
type MetricsRecorder interface {
	RecordAPIRequest(method, class string, statusCode int, durationSeconds float64)
	RecordAPIRetry(method, class, reason string)
	RecordRateLimitWait(class string, durationSeconds float64)
	RecordRateLimited(class string)
	RecordCircuitRejection(class string)
	RecordCircuitState(class string, state int)
	RecordCacheLookup(hit bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordAPIRequest(string, string, int, float64) {}
func (noopMetrics) RecordAPIRetry(string, string, string) {}
func (noopMetrics) RecordRateLimitWait(string, float64) {}
func (noopMetrics) RecordRateLimited(string) {}
func (noopMetrics) RecordCircuitRejection(string) {}
func (noopMetrics) RecordCircuitState(string, int) {}
func (noopMetrics) RecordCacheLookup(bool) {}
