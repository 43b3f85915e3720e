// Package cleanup は放置された一時レコードと期限切れセッションの自動削除ジョブを提供する。
// 最終更新から保持期間（デフォルト72時間）を超えた講師アンケートの一時レコードを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// 削除対象の種別。メトリクスのラベルとして使用する。
const (
	KindDrafts   = "drafts"
	KindSessions = "sessions"
)

// デフォルトの保持期間と実行間隔。
const (
	defaultDraftRetention = 72 * time.Hour
	defaultInterval       = time.Hour
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Metrics はクリーンアップ件数を記録するインターフェース。
type Metrics interface {
	RecordCleanupDeleted(kind string, count int64)
}

// CleanupJob は放置された一時レコードと期限切れセッションを削除するジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	db             Executor
	logger         *slog.Logger
	metrics        Metrics
	DraftRetention time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionが0以下の場合は72時間を使用する。metricsはnilでもよい。
func NewCleanupJob(db Executor, logger *slog.Logger, metrics Metrics, retention time.Duration) *CleanupJob {
	if retention <= 0 {
		retention = defaultDraftRetention
	}
	return &CleanupJob{
		db:             db,
		logger:         logger,
		metrics:        metrics,
		DraftRetention: retention,
	}
}

// Run は一時レコードと期限切れセッションを削除する。
// 一時レコードの削除に失敗した場合もセッションの削除は試行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d seconds", int64(j.DraftRetention.Seconds()))
	drafts, draftErr := j.exec(ctx, KindDrafts,
		`DELETE FROM tutor_drafts WHERE updated_at < now() - $1::interval`, interval)

	sessions, sessionErr := j.exec(ctx, KindSessions,
		`DELETE FROM sessions WHERE expires_at < now()`)

	if draftErr != nil {
		return draftErr
	}
	if sessionErr != nil {
		return sessionErr
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_drafts", drafts),
		slog.Int64("deleted_sessions", sessions),
		slog.Duration("draft_retention", j.DraftRetention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) exec(ctx context.Context, kind, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sのクリーンアップに失敗: %w", kind, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordCleanupDeleted(kind, deleted)
	}
	return deleted, nil
}

// Start は指定間隔でRunを実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。intervalが0以下の場合は1時間を使用する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("クリーンアップサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
