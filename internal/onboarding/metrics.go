package onboarding

import "time"

// 昇格処理の結果ラベル。
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics はオンボーディング処理が記録するメトリクスのインターフェース。
// metrics.Collectorが実装する。
type Metrics interface {
	RecordDraftSave(saved bool)
	RecordPromotion(result string, duration time.Duration)
	RecordAttemptTransition(state string)
}

type noopMetrics struct{}

func (noopMetrics) RecordDraftSave(bool)                  {}
func (noopMetrics) RecordPromotion(string, time.Duration) {}
func (noopMetrics) RecordAttemptTransition(string)        {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
