package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/plastudo/internal/model"
)

// PostgresDraftRepo はPostgreSQLを使用した講師アンケート一時レコードのリポジトリ。
type PostgresDraftRepo struct {
	db *sql.DB
}

// NewPostgresDraftRepo はPostgresDraftRepoを生成する。
func NewPostgresDraftRepo(db *sql.DB) *PostgresDraftRepo {
	return &PostgresDraftRepo{db: db}
}

// Upsert はsession_idをキーに一時レコードを作成または上書きする。
// 回答内容とupdated_atのみを置き換え、created_atは初回の値を維持する。
func (r *PostgresDraftRepo) Upsert(ctx context.Context, draft *model.TutorDraft) error {
	answers := draft.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode draft answers: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO tutor_drafts (session_id, question_1_answer, answers, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, now(), now())
		 ON CONFLICT (session_id) DO UPDATE SET
			question_1_answer = EXCLUDED.question_1_answer,
			answers = EXCLUDED.answers,
			updated_at = now()
		 RETURNING created_at, updated_at`,
		draft.SessionID, draft.Question1Answer, string(answersJSON),
	).Scan(&draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}
	return nil
}

// FindBySessionID は指定セッションIDの一時レコードを取得する。
// 見つからない場合はnilを返し、2件以上見つかった場合はErrAmbiguousDraftを返す。
func (r *PostgresDraftRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.TutorDraft, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, question_1_answer, answers, created_at, updated_at
		 FROM tutor_drafts
		 WHERE session_id = $1
		 LIMIT 2`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find draft: %w", err)
	}
	defer rows.Close()

	var drafts []*model.TutorDraft
	for rows.Next() {
		draft := &model.TutorDraft{}
		var answersJSON []byte
		if err := rows.Scan(&draft.SessionID, &draft.Question1Answer, &answersJSON, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		if err := json.Unmarshal(answersJSON, &draft.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode draft answers: %w", err)
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drafts: %w", err)
	}

	switch len(drafts) {
	case 0:
		return nil, nil
	case 1:
		return drafts[0], nil
	default:
		return nil, ErrAmbiguousDraft
	}
}

// DeleteBySessionID は指定セッションIDの一時レコードを削除する。
// 該当レコードが存在しない場合もエラーにしない。
func (r *PostgresDraftRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tutor_drafts WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DraftRepository = (*PostgresDraftRepo)(nil)
