package gallery

// Operation results reported to Metrics.
const (
	ResultSuccess       = "success"
	ResultCaptureFailed = "capture_failed"
	ResultPersistFailed = "persist_failed"
	ResultNotFound      = "not_found"
	ResultFailed        = "failed"
)

// Metrics receives counters from the store. Implementations must be safe for
// concurrent use.
type Metrics interface {
	CaptureResult(result string)
	DeleteResult(result string)
	Rollback(op string, ok bool)
	ReconcileDropped(n int)
	ReconcileOrphans(result string, n int)
	Records(n int)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) CaptureResult(string)         {}
func (NopMetrics) DeleteResult(string)          {}
func (NopMetrics) Rollback(string, bool)        {}
func (NopMetrics) ReconcileDropped(int)         {}
func (NopMetrics) ReconcileOrphans(string, int) {}
func (NopMetrics) Records(int)                  {}
