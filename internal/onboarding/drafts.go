package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/repository"
)

// ErrEmptySessionID はセッションIDが空の場合に返される。
var ErrEmptySessionID = errors.New("session id is required")

// SaveResult は一時レコード保存の結果を表す。
// 保存の失敗はフローを止めないため、Goのerrorとしてではなく値として返す。
type SaveResult struct {
	Saved bool
	Err   error
}

// DraftManager は回答途中のアンケート内容を一時レコードとして保存する。
type DraftManager struct {
	repo    repository.DraftRepository
	logger  *slog.Logger
	metrics Metrics
}

// NewDraftManager はDraftManagerを生成する。
func NewDraftManager(repo repository.DraftRepository, logger *slog.Logger, metrics Metrics) *DraftManager {
	return &DraftManager{
		repo:    repo,
		logger:  logger,
		metrics: metricsOrNoop(metrics),
	}
}

// SaveDraft はセッションIDをキーに一時レコードを作成または上書きする。
// 同じセッションIDで繰り返し呼び出しても一時レコードは1件のままで、最後の回答内容を保持する。
// 保存に失敗した場合はWARNログを出力し、Saved=falseの結果を返す。
func (m *DraftManager) SaveDraft(ctx context.Context, sessionID string, answers map[string]string) SaveResult {
	if sessionID == "" {
		return SaveResult{Err: ErrEmptySessionID}
	}

	draft := &model.TutorDraft{
		SessionID:       sessionID,
		Question1Answer: answers[AnswerKey(1)],
		Answers:         maps.Clone(answers),
	}
	if draft.Answers == nil {
		draft.Answers = map[string]string{}
	}

	if err := m.repo.Upsert(ctx, draft); err != nil {
		m.logger.Warn("failed to save questionnaire draft",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordDraftSave(false)
		return SaveResult{Err: fmt.Errorf("failed to save draft: %w", err)}
	}

	m.metrics.RecordDraftSave(true)
	return SaveResult{Saved: true}
}
