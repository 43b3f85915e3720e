package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/repository"
)

// 昇格処理の失敗原因。クライアントにはPROMOTION_FAILEDとしてのみ返す。
var (
	ErrDraftNotFound       = errors.New("draft not found for session")
	ErrIdentityUnavailable = errors.New("resolved identity is unavailable")
	ErrProfileRejected     = errors.New("tutor profile insert was rejected")
)

// UserLookup は解決済みidentityの正規のメールアドレスと表示名を取得する。
// auth.Serviceが実装する。
type UserLookup interface {
	LookupUser(ctx context.Context, userID string) (*model.User, error)
}

// Promoter は一時レコードを講師プロフィールへ昇格させる。
type Promoter struct {
	drafts  repository.DraftRepository
	tutors  repository.TutorRepository
	users   UserLookup
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
}

// NewPromoter はPromoterを生成する。
func NewPromoter(
	drafts repository.DraftRepository,
	tutors repository.TutorRepository,
	users UserLookup,
	logger *slog.Logger,
	metrics Metrics,
) *Promoter {
	return &Promoter{
		drafts:  drafts,
		tutors:  tutors,
		users:   users,
		logger:  logger,
		metrics: metricsOrNoop(metrics),
		now:     time.Now,
	}
}

// Promote はセッションIDの一時レコードとuserIDのidentityから講師プロフィールを作成し、
// 一時レコードを削除する。
//
// 一時レコードの取得・identityの取得・プロフィールの登録のいずれかに失敗した場合は
// プロフィールを作成せずにエラーを返す。一時レコードの削除失敗はログに記録するのみで、
// 昇格処理は成功として扱う。
func (p *Promoter) Promote(ctx context.Context, sessionID, userID string) (*model.Tutor, error) {
	start := p.now()

	tutor, err := p.promote(ctx, sessionID, userID)
	if err != nil {
		p.logger.Error("tutor profile promotion failed",
			slog.String("session_id", sessionID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		p.metrics.RecordPromotion(resultFailure, p.now().Sub(start))
		return nil, err
	}

	p.metrics.RecordPromotion(resultSuccess, p.now().Sub(start))
	p.logger.Info("tutor profile promoted",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
		slog.String("tutor_id", tutor.ID),
	)
	return tutor, nil
}

func (p *Promoter) promote(ctx context.Context, sessionID, userID string) (*model.Tutor, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if userID == "" {
		return nil, ErrIdentityUnavailable
	}

	draft, err := p.drafts.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch draft: %w", err)
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}

	user, err := p.users.LookupUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
	}
	if user == nil || user.Email == "" {
		return nil, ErrIdentityUnavailable
	}

	tutor := &model.Tutor{
		UserID:          userID,
		Name:            displayName(user),
		Email:           user.Email,
		Question1Answer: draft.Question1Answer,
		Subjects:        []string{},
	}
	if err := p.tutors.Create(ctx, tutor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileRejected, err)
	}

	if err := p.drafts.DeleteBySessionID(ctx, sessionID); err != nil {
		p.logger.Warn("failed to delete draft after promotion",
			slog.String("session_id", sessionID),
			slog.String("tutor_id", tutor.ID),
			slog.String("error", err.Error()),
		)
	}

	return tutor, nil
}

// displayName は表示名が未設定の場合にメールアドレスのローカル部を返す。
func displayName(user *model.User) string {
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(user.Email, "@")
	return local
}
