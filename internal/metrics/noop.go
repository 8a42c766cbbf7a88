package metrics

import "time"

// NoopCollector は何も記録しないMetricsCollector実装。
// メトリクスを公開しない構成やテストで使う。
type NoopCollector struct{}

// NewNoopCollector はNoopCollectorを生成する。
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (*NoopCollector) RecordFetchSuccess()                           {}
func (*NoopCollector) RecordFetchFailure()                           {}
func (*NoopCollector) RecordHTTPStatus(statusCode int)               {}
func (*NoopCollector) RecordFetchLatency(duration time.Duration)     {}
func (*NoopCollector) RecordArticlesCreated(count int)               {}
func (*NoopCollector) RecordSummary(model string)                    {}
func (*NoopCollector) RecordSummarizeLatency(duration time.Duration) {}
func (*NoopCollector) RecordTaskCompleted(status string)             {}

// compile-time interface check
var _ MetricsCollector = (*NoopCollector)(nil)
